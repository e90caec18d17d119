// Package livetv exports the active backend's live TV channels as an M3U
// playlist and an XMLTV guide.
package livetv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/observability"
	"github.com/jmylchreest/mediabridge/pkg/m3u"
	"github.com/jmylchreest/mediabridge/pkg/xmltv"
)

// GeneratorName is written into exported guides.
const GeneratorName = "mediabridge"

// Guide is a snapshot of channels and their programmes.
type Guide struct {
	Channels []backend.LiveChannel
	Programs []backend.LiveProgram
}

// Exporter renders live TV exports.
type Exporter struct {
	logger *slog.Logger
}

// NewExporter creates an exporter.
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: observability.WithComponent(logger, "livetv")}
}

// Fetch loads channels and programmes concurrently. Programmes for
// channels the backend did not list are dropped.
func (e *Exporter) Fetch(ctx context.Context, adapter backend.Adapter, userID string, channelIDs []string) (*Guide, error) {
	if adapter == nil {
		return nil, backend.ErrNoActiveConnection
	}

	var guide Guide
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		guide.Channels = adapter.ListLiveChannels(gctx, userID)
		return nil
	})
	g.Go(func() error {
		guide.Programs = adapter.ListLivePrograms(gctx, userID, channelIDs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(channelIDs) > 0 {
		guide.Channels = filterChannels(guide.Channels, channelIDs)
	}
	known := make(map[string]struct{}, len(guide.Channels))
	for _, ch := range guide.Channels {
		known[ch.ID] = struct{}{}
	}
	programs := guide.Programs[:0]
	for _, p := range guide.Programs {
		if _, ok := known[p.ChannelID]; ok {
			programs = append(programs, p)
		}
	}
	guide.Programs = programs

	sort.SliceStable(guide.Programs, func(i, j int) bool {
		if guide.Programs[i].ChannelID != guide.Programs[j].ChannelID {
			return guide.Programs[i].ChannelID < guide.Programs[j].ChannelID
		}
		return guide.Programs[i].Start.Before(guide.Programs[j].Start)
	})

	e.logger.Debug("fetched live tv guide",
		slog.Int("channels", len(guide.Channels)),
		slog.Int("programs", len(guide.Programs)))
	return &guide, nil
}

// WritePlaylist writes an M3U playlist whose entries point at the video
// proxy. baseURL makes the entry URLs absolute when set.
func (e *Exporter) WritePlaylist(w io.Writer, guide *Guide, baseURL string) error {
	base := strings.TrimRight(baseURL, "/")
	pw := m3u.NewWriter(w).WithHeaderAttr("url-tvg", base+"/livetv/guide.xml")
	if err := pw.WriteHeader(); err != nil {
		return err
	}
	for _, ch := range guide.Channels {
		entry := &m3u.Entry{
			TvgID:         ch.ID,
			TvgName:       ch.Name,
			GroupTitle:    "Live TV",
			ChannelNumber: ch.Number,
			Title:         ch.Name,
			URL:           base + "/video-proxy/" + url.PathEscape(ch.ID),
		}
		if ch.ImageURL != "" {
			entry.TvgLogo = base + ch.ImageURL
		}
		if err := pw.WriteEntry(entry); err != nil {
			return fmt.Errorf("writing channel %s: %w", ch.ID, err)
		}
	}
	return nil
}

// WriteGuide writes an XMLTV document.
func (e *Exporter) WriteGuide(w io.Writer, guide *Guide, baseURL string) error {
	base := strings.TrimRight(baseURL, "/")
	gw := xmltv.NewWriter(w, GeneratorName)
	for _, ch := range guide.Channels {
		xc := &xmltv.Channel{ID: ch.ID, DisplayName: ch.Name, Number: ch.Number}
		if ch.ImageURL != "" {
			xc.Icon = base + ch.ImageURL
		}
		if err := gw.WriteChannel(xc); err != nil {
			return err
		}
	}
	for _, p := range guide.Programs {
		if err := gw.WriteProgramme(&xmltv.Programme{
			Channel:     p.ChannelID,
			Start:       p.Start,
			Stop:        p.End,
			Title:       p.Name,
			SubTitle:    p.EpisodeTitle,
			Description: p.Overview,
			Categories:  p.Genres,
		}); err != nil {
			return err
		}
	}
	return gw.WriteFooter()
}

func filterChannels(channels []backend.LiveChannel, ids []string) []backend.LiveChannel {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]backend.LiveChannel, 0, len(ids))
	for _, ch := range channels {
		if _, ok := want[ch.ID]; ok {
			out = append(out, ch)
		}
	}
	return out
}
