package m3u

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_WriteEntry(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf).WithHeaderAttr("url-tvg", "/livetv/guide.xml")

	require.NoError(t, w.WriteEntry(&Entry{
		TvgID:         "ch1",
		TvgName:       `News "24"`,
		GroupTitle:    "Live TV",
		ChannelNumber: "2.1",
		Title:         "News 24",
		URL:           "/video-proxy/ch1",
		Extra:         map[string]string{"z-b": "2", "a-a": "1"},
	}))
	require.NoError(t, w.WriteEntry(&Entry{Title: "Plain\nTitle", URL: "/video-proxy/ch2"}))

	expected := "#EXTM3U url-tvg=\"/livetv/guide.xml\"\n" +
		"#EXTINF:-1 tvg-id=\"ch1\" tvg-name=\"News '24'\" group-title=\"Live TV\" tvg-chno=\"2.1\" a-a=\"1\" z-b=\"2\",News 24\n" +
		"/video-proxy/ch1\n" +
		"#EXTINF:-1,Plain Title\n" +
		"/video-proxy/ch2\n"
	assert.Equal(t, expected, buf.String())
	assert.Equal(t, 2, w.Entries())
}

func TestWriter_HeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteHeader())
	assert.Equal(t, "#EXTM3U\n", buf.String())
}

func TestWriter_RequiresURL(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, NewWriter(&buf).WriteEntry(&Entry{Title: "x"}))
}
