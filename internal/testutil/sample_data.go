package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

// Fictional title parts for generated catalogs.
// NEVER use real film or series names.
var (
	TitleAdjectives = []string{"Silent", "Crimson", "Hidden", "Last", "Northern", "Broken", "Golden", "Distant"}
	TitleNouns      = []string{"Harbor", "Signal", "Orchard", "Frontier", "Archive", "Tide", "Lantern", "Circuit"}
	Languages       = []string{"eng", "spa", "fra", "deu", "jpn"}
)

// SampleDataGenerator produces deterministic wire items for tests.
type SampleDataGenerator struct {
	rng *rand.Rand
	seq int
}

// NewSampleDataGenerator creates a generator seeded from the clock.
func NewSampleDataGenerator() *SampleDataGenerator {
	return NewSampleDataGeneratorWithSeed(time.Now().UnixNano())
}

// NewSampleDataGeneratorWithSeed creates a reproducible generator.
func NewSampleDataGeneratorWithSeed(seed int64) *SampleDataGenerator {
	return &SampleDataGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Title returns a fictional title.
func (g *SampleDataGenerator) Title() string {
	return "The " + TitleAdjectives[g.rng.Intn(len(TitleAdjectives))] + " " + TitleNouns[g.rng.Intn(len(TitleNouns))]
}

func (g *SampleDataGenerator) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s%04d", prefix, g.seq)
}

// Movie returns a movie with one source carrying a video stream and one
// audio stream per language.
func (g *SampleDataGenerator) Movie(parentID string, languages ...string) mediabrowser.BaseItem {
	id := g.nextID("movie")
	streams := []mediabrowser.MediaStream{{Index: 0, Type: mediabrowser.StreamTypeVideo, Codec: "h264", Width: 1920, Height: 1080}}
	for i, lang := range languages {
		streams = append(streams, mediabrowser.MediaStream{
			Index:     i + 1,
			Type:      mediabrowser.StreamTypeAudio,
			Codec:     "aac",
			Language:  lang,
			IsDefault: i == 0,
			Channels:  2,
		})
	}
	runtime := int64(90+g.rng.Intn(60)) * 60 * mediabrowser.TicksPerSecond
	return mediabrowser.BaseItem{
		ID:             id,
		Name:           fmt.Sprintf("%s %d", g.Title(), g.seq),
		Type:           mediabrowser.ItemTypeMovie,
		ParentID:       parentID,
		ProductionYear: 1980 + g.rng.Intn(45),
		RunTimeTicks:   runtime,
		ImageTags:      map[string]string{mediabrowser.ImagePrimary: "p-" + id},
		UserData:       &mediabrowser.UserItemData{},
		MediaSources: []mediabrowser.MediaSource{{
			ID:                 id,
			Container:          "mkv",
			RunTimeTicks:       runtime,
			SupportsDirectPlay: true,
			MediaStreams:       streams,
		}},
	}
}

// Movies returns n movies under parentID with English audio.
func (g *SampleDataGenerator) Movies(parentID string, n int) []mediabrowser.BaseItem {
	out := make([]mediabrowser.BaseItem, 0, n)
	for range n {
		out = append(out, g.Movie(parentID, "eng"))
	}
	return out
}

// Library returns a library view.
func (g *SampleDataGenerator) Library(name, collectionType string) mediabrowser.BaseItem {
	return mediabrowser.BaseItem{
		ID:             g.nextID("lib"),
		Name:           name,
		Type:           mediabrowser.ItemTypeCollection,
		CollectionType: collectionType,
		IsFolder:       true,
	}
}

// Channel returns a live TV channel.
func (g *SampleDataGenerator) Channel(number string) mediabrowser.BaseItem {
	id := g.nextID("ch")
	return mediabrowser.BaseItem{
		ID:            id,
		Name:          TitleNouns[g.rng.Intn(len(TitleNouns))] + " TV",
		Type:          mediabrowser.ItemTypeTvChannel,
		ChannelNumber: number,
		ImageTags:     map[string]string{mediabrowser.ImagePrimary: "logo-" + id},
	}
}

// Program returns a guide entry on channelID.
func (g *SampleDataGenerator) Program(channelID string, start time.Time, d time.Duration) mediabrowser.BaseItem {
	end := start.Add(d)
	return mediabrowser.BaseItem{
		ID:        g.nextID("prog"),
		Name:      g.Title(),
		Type:      mediabrowser.ItemTypeLiveTvProgram,
		ChannelID: channelID,
		Overview:  "A fictional broadcast.",
		Genres:    []string{"Drama"},
		StartDate: &start,
		EndDate:   &end,
	}
}
