package backend

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

// ResumeTolerance is how far a resume position may exceed the runtime.
const ResumeTolerance = 5

// TicksToSeconds converts 100ns ticks to whole seconds.
func TicksToSeconds(ticks int64) int64 {
	return ticks / mediabrowser.TicksPerSecond
}

// SecondsToTicks converts seconds to 100ns ticks.
func SecondsToTicks(seconds int64) int64 {
	return seconds * mediabrowser.TicksPerSecond
}

func kindOf(t string) ItemKind {
	switch t {
	case mediabrowser.ItemTypeMovie:
		return KindMovie
	case mediabrowser.ItemTypeSeries:
		return KindSeries
	case mediabrowser.ItemTypeSeason:
		return KindSeason
	case mediabrowser.ItemTypeEpisode:
		return KindEpisode
	case mediabrowser.ItemTypeTvChannel:
		return KindChannel
	case mediabrowser.ItemTypeAudio:
		return KindAudio
	case mediabrowser.ItemTypeMusicAlbum:
		return KindAlbum
	case mediabrowser.ItemTypeLiveTvProgram:
		return KindProgram
	case "Video", "MusicVideo", "Trailer":
		return KindVideo
	case mediabrowser.ItemTypeBoxSet, mediabrowser.ItemTypeCollection, mediabrowser.ItemTypeUserView, "Folder":
		return KindFolder
	default:
		return KindOther
	}
}

// NormalizeItem converts a wire item into a MediaItem.
func NormalizeItem(bi mediabrowser.BaseItem) MediaItem {
	item := MediaItem{
		BackendID:         bi.ID,
		Name:              bi.Name,
		Kind:              kindOf(bi.Type),
		Overview:          bi.Overview,
		Year:              bi.ProductionYear,
		RuntimeSeconds:    TicksToSeconds(bi.RunTimeTicks),
		Genres:            bi.Genres,
		Rating:            bi.CommunityRating,
		SeriesID:          bi.SeriesID,
		SeriesName:        bi.SeriesName,
		SeasonID:          bi.SeasonID,
		IndexNumber:       bi.IndexNumber,
		ParentIndexNumber: bi.ParentIndexNumber,
		ChannelNumber:     firstNonEmpty(bi.ChannelNumber, bi.Number),
		ParentID:          bi.ParentID,
		SortName:          bi.SortName,
		Images: ImageTags{
			Primary:              bi.ImageTags[mediabrowser.ImagePrimary],
			Backdrop:             bi.ImageTags[mediabrowser.ImageBackdrop],
			Thumb:                bi.ImageTags[mediabrowser.ImageThumb],
			Backdrops:            bi.BackdropImageTags,
			ParentBackdropItemID: bi.ParentBackdropItemID,
			ParentBackdrops:      bi.ParentBackdropImageTags,
		},
	}

	if bi.UserData != nil {
		item.PlayCount = bi.UserData.PlayCount
		item.PlayedPercent = bi.UserData.PlayedPercentage
		item.ResumePositionSeconds = clampResume(TicksToSeconds(bi.UserData.PlaybackPositionTicks), item.RuntimeSeconds)
	}

	if item.Images.Primary != "" {
		item.ImageURL = ImageRef{ItemID: bi.ID, Kind: ImagePrimary, Tag: item.Images.Primary}.Path()
	}
	if ref := backdropOnly(item.Images, bi.ID); ref != nil {
		item.BackdropURL = ref.Path()
	}

	for _, src := range bi.MediaSources {
		item.MediaSources = append(item.MediaSources, normalizeSource(src))
	}
	if len(item.MediaSources) == 0 && len(bi.MediaStreams) > 0 {
		item.MediaSources = []MediaSource{normalizeSource(mediabrowser.MediaSource{
			ID:           bi.ID,
			MediaStreams: bi.MediaStreams,
		})}
	}
	return item
}

// NormalizeItems converts a list of wire items.
func NormalizeItems(items []mediabrowser.BaseItem) []MediaItem {
	out := make([]MediaItem, 0, len(items))
	for _, bi := range items {
		out = append(out, NormalizeItem(bi))
	}
	return out
}

// backdropOnly picks a backdrop without falling back to the primary image.
func backdropOnly(t ImageTags, itemID string) *ImageRef {
	if t.Backdrop != "" || (len(t.Backdrops) > 0 && t.Backdrops[0] != "") {
		return t.BestBackdrop(itemID)
	}
	return t.ParentBackdrop()
}

func clampResume(resume, runtime int64) int64 {
	if resume < 0 {
		return 0
	}
	if runtime > 0 && resume > runtime+ResumeTolerance {
		return runtime + ResumeTolerance
	}
	return resume
}

func normalizeSource(src mediabrowser.MediaSource) MediaSource {
	out := MediaSource{
		ID:                  src.ID,
		Container:           src.Container,
		Bitrate:             src.Bitrate,
		SupportsDirectPlay:  src.SupportsDirectPlay,
		SupportsTranscoding: src.SupportsTranscoding,
		DefaultAudioIndex:   src.DefaultAudioStreamIndex,
	}
	for _, st := range src.MediaStreams {
		out.Streams = append(out.Streams, MediaStream{
			Index:     st.Index,
			Type:      st.Type,
			Codec:     st.Codec,
			Language:  st.Language,
			Title:     firstNonEmpty(st.Title, st.DisplayTitle),
			IsDefault: st.IsDefault,
			Channels:  st.Channels,
		})
	}
	return out
}

// NormalizeLibrary converts a library view.
func NormalizeLibrary(bi mediabrowser.BaseItem) Library {
	lib := Library{
		ID:             bi.ID,
		Name:           bi.Name,
		CollectionType: bi.CollectionType,
		SortName:       bi.SortName,
	}
	if tag := bi.ImageTags[mediabrowser.ImagePrimary]; tag != "" {
		lib.ImageURL = ImageRef{ItemID: bi.ID, Kind: ImagePrimary, Tag: tag}.Path()
	}
	return lib
}

// DedupeLibraries orders libraries by sort name and drops repeats by id and
// then by case-folded name, keeping the first occurrence.
func DedupeLibraries(libs []Library) []Library {
	return dedupe(libs,
		func(l Library) string { return l.ID },
		func(l Library) string { return l.Name },
		func(l Library) string { return firstNonEmpty(l.SortName, l.Name) },
	)
}

// DedupeItems applies the library dedupe policy to library items: one
// title indexed twice under different ids is listed once.
func DedupeItems(items []MediaItem) []MediaItem {
	return dedupe(items,
		func(i MediaItem) string { return i.BackendID },
		func(i MediaItem) string { return i.Name },
		func(i MediaItem) string { return firstNonEmpty(i.SortName, i.Name) },
	)
}

func dedupe[T any](in []T, id, name, sortKey func(T) string) []T {
	fold := cases.Fold()
	sorted := make([]T, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool {
		return fold.String(sortKey(sorted[i])) < fold.String(sortKey(sorted[j]))
	})

	seenIDs := make(map[string]struct{}, len(sorted))
	seenNames := make(map[string]struct{}, len(sorted))
	out := make([]T, 0, len(sorted))
	for _, v := range sorted {
		if _, ok := seenIDs[id(v)]; ok {
			continue
		}
		n := strings.TrimSpace(fold.String(name(v)))
		if n != "" {
			if _, ok := seenNames[n]; ok {
				continue
			}
			seenNames[n] = struct{}{}
		}
		seenIDs[id(v)] = struct{}{}
		out = append(out, v)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
