// Package m3u writes extended M3U playlists.
package m3u

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Entry is one playlist entry.
type Entry struct {
	// Duration in seconds. Zero is written as -1 (live).
	Duration int

	TvgID         string
	TvgName       string
	TvgLogo       string
	GroupTitle    string
	ChannelNumber string

	Title string
	URL   string

	// Extra attributes are written in key order after the known ones.
	Extra map[string]string
}

// Writer streams an M3U playlist.
type Writer struct {
	w             io.Writer
	headerAttrs   map[string]string
	headerWritten bool
	entries       int
}

// NewWriter creates a new M3U writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WithHeaderAttr adds an attribute to the #EXTM3U line, such as url-tvg.
// It must be called before the first write.
func (w *Writer) WithHeaderAttr(key, value string) *Writer {
	if w.headerAttrs == nil {
		w.headerAttrs = make(map[string]string)
	}
	w.headerAttrs[key] = value
	return w
}

// WriteHeader writes the #EXTM3U line once.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	line := "#EXTM3U"
	if attrs := formatAttrs(nil, w.headerAttrs); attrs != "" {
		line += " " + attrs
	}
	if _, err := fmt.Fprintln(w.w, line); err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteEntry writes one entry, writing the header first if needed.
func (w *Writer) WriteEntry(entry *Entry) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if entry.URL == "" {
		return fmt.Errorf("entry %q has no URL", entry.Title)
	}

	known := [][2]string{
		{"tvg-id", entry.TvgID},
		{"tvg-name", entry.TvgName},
		{"tvg-logo", entry.TvgLogo},
		{"group-title", entry.GroupTitle},
		{"tvg-chno", entry.ChannelNumber},
	}

	duration := entry.Duration
	if duration == 0 {
		duration = -1
	}

	extinf := fmt.Sprintf("#EXTINF:%d", duration)
	if attrs := formatAttrs(known, entry.Extra); attrs != "" {
		extinf += " " + attrs
	}
	extinf += "," + sanitizeTitle(entry.Title)

	if _, err := fmt.Fprintf(w.w, "%s\n%s\n", extinf, entry.URL); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	w.entries++
	return nil
}

// Entries returns the number of entries written.
func (w *Writer) Entries() int {
	return w.entries
}

func formatAttrs(known [][2]string, extra map[string]string) string {
	var parts []string
	for _, kv := range known {
		if kv[1] != "" {
			parts = append(parts, fmt.Sprintf(`%s="%s"`, kv[0], escapeQuotes(kv[1])))
		}
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, escapeQuotes(extra[k])))
	}
	return strings.Join(parts, " ")
}

// escapeQuotes replaces double quotes, which EXTINF attributes cannot escape.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}

func sanitizeTitle(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
