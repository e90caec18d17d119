package xmltv

import (
	"bytes"
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parsedGuide struct {
	Generator string `xml:"generator-info-name,attr"`
	Channels  []struct {
		ID    string   `xml:"id,attr"`
		Names []string `xml:"display-name"`
		Icon  struct {
			Src string `xml:"src,attr"`
		} `xml:"icon"`
	} `xml:"channel"`
	Programmes []struct {
		Start      string   `xml:"start,attr"`
		Stop       string   `xml:"stop,attr"`
		Channel    string   `xml:"channel,attr"`
		Title      string   `xml:"title"`
		Desc       string   `xml:"desc"`
		Categories []string `xml:"category"`
	} `xml:"programme"`
}

func TestWriter_Document(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "mediabridge")

	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, w.WriteChannel(&Channel{ID: "ch1", DisplayName: "News & Weather", Number: "7", Icon: "/images/ch1/primary"}))
	require.NoError(t, w.WriteProgramme(&Programme{
		Channel:     "ch1",
		Start:       start,
		Stop:        start.Add(30 * time.Minute),
		Title:       "Evening <Live>",
		Description: "Headlines",
		Categories:  []string{"News", "Weather"},
	}))
	require.NoError(t, w.WriteFooter())

	var guide parsedGuide
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &guide))

	assert.Equal(t, "mediabridge", guide.Generator)
	require.Len(t, guide.Channels, 1)
	assert.Equal(t, []string{"News & Weather", "7"}, guide.Channels[0].Names)
	assert.Equal(t, "/images/ch1/primary", guide.Channels[0].Icon.Src)
	require.Len(t, guide.Programmes, 1)
	assert.Equal(t, "20260301200000 +0000", guide.Programmes[0].Start)
	assert.Equal(t, "20260301203000 +0000", guide.Programmes[0].Stop)
	assert.Equal(t, "Evening <Live>", guide.Programmes[0].Title)
	assert.Equal(t, []string{"News", "Weather"}, guide.Programmes[0].Categories)
}

func TestWriter_ChannelsBeforeProgrammes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "mediabridge")
	require.NoError(t, w.WriteProgramme(&Programme{Channel: "a", Title: "x"}))
	assert.Error(t, w.WriteChannel(&Channel{ID: "a"}))
}

func TestWriter_EmptyGuide(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, "mediabridge").WriteFooter())

	var guide parsedGuide
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &guide))
	assert.Empty(t, guide.Channels)
}
