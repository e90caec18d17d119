package backend

import (
	"net/url"
	"strings"
	"time"
)

// ItemKind is the normalized item type.
type ItemKind string

const (
	KindMovie   ItemKind = "Movie"
	KindSeries  ItemKind = "Series"
	KindSeason  ItemKind = "Season"
	KindEpisode ItemKind = "Episode"
	KindChannel ItemKind = "Channel"
	KindAudio   ItemKind = "Audio"
	KindAlbum   ItemKind = "Album"
	KindVideo   ItemKind = "Video"
	KindProgram ItemKind = "Program"
	KindFolder  ItemKind = "Folder"
	KindOther   ItemKind = "Other"
)

// MediaItem is the normalized catalog entry handed to the presentation layer.
type MediaItem struct {
	BackendID             string   `json:"id"`
	Name                  string   `json:"name"`
	Kind                  ItemKind `json:"kind"`
	Overview              string   `json:"overview,omitempty"`
	Year                  int      `json:"year,omitempty"`
	RuntimeSeconds        int64    `json:"runtimeSeconds,omitempty"`
	Genres                []string `json:"genres,omitempty"`
	Rating                float64  `json:"rating,omitempty"`
	ImageURL              string   `json:"imageUrl,omitempty"`
	BackdropURL           string   `json:"backdropUrl,omitempty"`
	PlayCount             int      `json:"playCount"`
	ResumePositionSeconds int64    `json:"resumePositionSeconds"`
	PlayedPercent         float64  `json:"playedPercent"`

	SeriesID          string `json:"seriesId,omitempty"`
	SeriesName        string `json:"seriesName,omitempty"`
	SeasonID          string `json:"seasonId,omitempty"`
	IndexNumber       *int   `json:"indexNumber,omitempty"`
	ParentIndexNumber *int   `json:"parentIndexNumber,omitempty"`
	ChannelNumber     string `json:"channelNumber,omitempty"`
	ParentID          string `json:"parentId,omitempty"`

	// MediaSources is populated by GetItemDetails only.
	MediaSources []MediaSource `json:"mediaSources,omitempty"`

	SortName string    `json:"-"`
	Images   ImageTags `json:"-"`
}

// Library is one top-level library view.
type Library struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CollectionType string `json:"collectionType,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`

	SortName string `json:"-"`
}

// MediaSource is one playable version of an item.
type MediaSource struct {
	ID                  string        `json:"id"`
	Container           string        `json:"container,omitempty"`
	Bitrate             int64         `json:"bitrate,omitempty"`
	SupportsDirectPlay  bool          `json:"supportsDirectPlay"`
	SupportsTranscoding bool          `json:"supportsTranscoding"`
	DefaultAudioIndex   *int          `json:"defaultAudioIndex,omitempty"`
	Streams             []MediaStream `json:"streams,omitempty"`
}

// AudioStreams returns the source's audio streams in index order.
func (s MediaSource) AudioStreams() []MediaStream {
	return s.streamsOfType(StreamAudio)
}

// HasVideo reports whether the source carries a video stream.
func (s MediaSource) HasVideo() bool {
	return len(s.streamsOfType(StreamVideo)) > 0
}

func (s MediaSource) streamsOfType(t string) []MediaStream {
	var out []MediaStream
	for _, st := range s.Streams {
		if st.Type == t {
			out = append(out, st)
		}
	}
	return out
}

// Media stream types.
const (
	StreamVideo    = "Video"
	StreamAudio    = "Audio"
	StreamSubtitle = "Subtitle"
)

// MediaStream is one elementary stream.
type MediaStream struct {
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Codec     string `json:"codec,omitempty"`
	Language  string `json:"language,omitempty"`
	Title     string `json:"title,omitempty"`
	IsDefault bool   `json:"isDefault"`
	Channels  int    `json:"channels,omitempty"`
}

// AuthResult is a successful authentication.
type AuthResult struct {
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	Token           string `json:"-"`
	IsAdministrator bool   `json:"isAdministrator"`
	ServerID        string `json:"serverId,omitempty"`
}

// LiveChannel is a live TV channel.
type LiveChannel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Number   string `json:"number,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// LiveProgram is one guide entry.
type LiveProgram struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channelId"`
	Name         string    `json:"name"`
	EpisodeTitle string    `json:"episodeTitle,omitempty"`
	Overview     string    `json:"overview,omitempty"`
	Genres       []string  `json:"genres,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// StreamMode selects how the backend delivers a stream.
type StreamMode string

const (
	// StreamDirect serves the original file without re-encoding.
	StreamDirect StreamMode = "direct"
	// StreamTranscode asks the backend for a progressive transcode.
	StreamTranscode StreamMode = "transcode"
	// StreamSegmented asks the backend for an HLS transcode.
	StreamSegmented StreamMode = "segmented"
)

// StreamOptions parameterizes BuildStreamURL.
type StreamOptions struct {
	Mode             StreamMode
	ItemKind         ItemKind
	MediaSourceID    string
	AudioStreamIndex *int
	Containers       []string
	VideoCodecs      []string
	AudioCodecs      []string
	MaxBitrate       int64
	PlaySessionID    string
	DeviceID         string
}

// ImageKind is an image type exposed through the image proxy.
type ImageKind string

const (
	ImagePrimary  ImageKind = "primary"
	ImageBackdrop ImageKind = "backdrop"
	ImageThumb    ImageKind = "thumb"
	ImageLogo     ImageKind = "logo"
)

// ParseImageKind accepts lower or title case names.
func ParseImageKind(s string) (ImageKind, bool) {
	k := ImageKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case ImagePrimary, ImageBackdrop, ImageThumb, ImageLogo:
		return k, true
	default:
		return "", false
	}
}

// RemoteName returns the MediaBrowser image type name.
func (k ImageKind) RemoteName() string {
	switch k {
	case ImageBackdrop:
		return "Backdrop"
	case ImageThumb:
		return "Thumb"
	case ImageLogo:
		return "Logo"
	default:
		return "Primary"
	}
}

// ImageRef points at an image through the image proxy.
type ImageRef struct {
	ItemID string
	Kind   ImageKind
	Tag    string
}

// Path returns the relative proxy path for the image. It never carries
// backend credentials.
func (r ImageRef) Path() string {
	p := "/images/" + url.PathEscape(r.ItemID) + "/" + string(r.Kind)
	if r.Tag != "" {
		p += "?tag=" + url.QueryEscape(r.Tag)
	}
	return p
}

// ImageTags are the raw image tags of an item.
type ImageTags struct {
	Primary              string
	Backdrop             string
	Thumb                string
	Backdrops            []string
	ParentBackdropItemID string
	ParentBackdrops      []string
}

// BestBackdrop applies the metadata-only part of the image fallback: the
// item's own backdrop tag, then its backdrop array, then its primary tag.
func (t ImageTags) BestBackdrop(itemID string) *ImageRef {
	switch {
	case t.Backdrop != "":
		return &ImageRef{ItemID: itemID, Kind: ImageBackdrop, Tag: t.Backdrop}
	case len(t.Backdrops) > 0 && t.Backdrops[0] != "":
		return &ImageRef{ItemID: itemID, Kind: ImageBackdrop, Tag: t.Backdrops[0]}
	case t.Primary != "":
		return &ImageRef{ItemID: itemID, Kind: ImagePrimary, Tag: t.Primary}
	default:
		return nil
	}
}

// ParentBackdrop returns the inherited backdrop, if any.
func (t ImageTags) ParentBackdrop() *ImageRef {
	if t.ParentBackdropItemID == "" || len(t.ParentBackdrops) == 0 || t.ParentBackdrops[0] == "" {
		return nil
	}
	return &ImageRef{ItemID: t.ParentBackdropItemID, Kind: ImageBackdrop, Tag: t.ParentBackdrops[0]}
}
