package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

func TestNormalizeItem(t *testing.T) {
	idx := 1
	bi := mediabrowser.BaseItem{
		ID:             "m1",
		Name:           "Heat",
		Type:           mediabrowser.ItemTypeMovie,
		ProductionYear: 1995,
		RunTimeTicks:   SecondsToTicks(600),
		ImageTags:      map[string]string{"Primary": "p1"},
		UserData: &mediabrowser.UserItemData{
			PlayCount:             2,
			PlaybackPositionTicks: SecondsToTicks(900),
		},
		MediaSources: []mediabrowser.MediaSource{{
			ID:                      "src",
			Container:               "mkv",
			DefaultAudioStreamIndex: &idx,
			MediaStreams: []mediabrowser.MediaStream{
				{Index: 0, Type: "Video", Codec: "h264"},
				{Index: 1, Type: "Audio", Language: "eng", DisplayTitle: "English AC3"},
			},
		}},
	}

	item := NormalizeItem(bi)
	assert.Equal(t, KindMovie, item.Kind)
	assert.Equal(t, int64(600), item.RuntimeSeconds)
	assert.Equal(t, int64(600+ResumeTolerance), item.ResumePositionSeconds)
	assert.Equal(t, "/images/m1/primary?tag=p1", item.ImageURL)
	assert.Empty(t, item.BackdropURL)
	assert.NotContains(t, item.ImageURL, "api_key")

	require.Len(t, item.MediaSources, 1)
	src := item.MediaSources[0]
	assert.True(t, src.HasVideo())
	require.Len(t, src.AudioStreams(), 1)
	assert.Equal(t, "English AC3", src.AudioStreams()[0].Title)
}

func TestNormalizeItem_StreamsWithoutSources(t *testing.T) {
	item := NormalizeItem(mediabrowser.BaseItem{
		ID:   "a1",
		Type: mediabrowser.ItemTypeAudio,
		MediaStreams: []mediabrowser.MediaStream{
			{Index: 0, Type: "Audio", Codec: "flac"},
		},
	})
	require.Len(t, item.MediaSources, 1)
	assert.Equal(t, "a1", item.MediaSources[0].ID)
	assert.Equal(t, KindAudio, item.Kind)
}

func TestClampResume(t *testing.T) {
	assert.Equal(t, int64(0), clampResume(-3, 100))
	assert.Equal(t, int64(50), clampResume(50, 100))
	assert.Equal(t, int64(105), clampResume(105, 100))
	assert.Equal(t, int64(105), clampResume(400, 100))
	assert.Equal(t, int64(400), clampResume(400, 0))
}

func TestBackdropFallback(t *testing.T) {
	t.Run("array entry when no own tag", func(t *testing.T) {
		ref := ImageTags{Backdrops: []string{"b0", "b1"}}.BestBackdrop("x")
		require.NotNil(t, ref)
		assert.Equal(t, ImageBackdrop, ref.Kind)
		assert.Equal(t, "b0", ref.Tag)
	})

	t.Run("primary last", func(t *testing.T) {
		ref := ImageTags{Primary: "p"}.BestBackdrop("x")
		require.NotNil(t, ref)
		assert.Equal(t, ImagePrimary, ref.Kind)
	})

	t.Run("nothing", func(t *testing.T) {
		assert.Nil(t, ImageTags{}.BestBackdrop("x"))
	})

	t.Run("inherited backdrop for episodes", func(t *testing.T) {
		item := NormalizeItem(mediabrowser.BaseItem{
			ID:                      "ep",
			Type:                    mediabrowser.ItemTypeEpisode,
			ParentBackdropItemID:    "series",
			ParentBackdropImageTags: []string{"sb"},
		})
		assert.Equal(t, "/images/series/backdrop?tag=sb", item.BackdropURL)
	})
}

func TestDedupeLibraries(t *testing.T) {
	libs := DedupeLibraries([]Library{
		{ID: "2", Name: "Movies"},
		{ID: "1", Name: "Anime"},
		{ID: "2", Name: "Movies again"},
		{ID: "3", Name: "movies"},
		{ID: "4", Name: "TV", SortName: "0 tv"},
	})

	names := make([]string, 0, len(libs))
	for _, l := range libs {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"TV", "Anime", "Movies"}, names)
}

func TestDedupeItems_ByIDThenName(t *testing.T) {
	items := DedupeItems([]MediaItem{
		{BackendID: "b", Name: "Dune", SortName: "Dune", Year: 2021},
		{BackendID: "a", Name: "Arrival", SortName: "Arrival"},
		{BackendID: "c", Name: "DUNE", SortName: "Dune", Year: 1984},
		{BackendID: "a", Name: "Arrival (copy)", SortName: "Arrival"},
	})
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].BackendID)
	assert.Equal(t, "Arrival", items[0].Name)
	assert.Equal(t, "b", items[1].BackendID)
}
