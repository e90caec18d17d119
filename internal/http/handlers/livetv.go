package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/livetv"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// LiveTVHandler serves live TV channels and the guide, as JSON and as
// M3U/XMLTV exports.
type LiveTVHandler struct {
	exporter *livetv.Exporter
	logger   *slog.Logger
}

// NewLiveTVHandler creates a new live TV handler.
func NewLiveTVHandler(exporter *livetv.Exporter) *LiveTVHandler {
	return &LiveTVHandler{exporter: exporter, logger: slog.Default()}
}

// WithLogger sets the logger for the handler.
func (h *LiveTVHandler) WithLogger(logger *slog.Logger) *LiveTVHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Register registers the JSON live TV routes with the API.
func (h *LiveTVHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listLiveChannels",
		Method:      "GET",
		Path:        "/api/v1/livetv/channels",
		Summary:     "List live TV channels",
		Tags:        []string{"Live TV"},
	}, h.Channels)

	huma.Register(api, huma.Operation{
		OperationID: "listLivePrograms",
		Method:      "GET",
		Path:        "/api/v1/livetv/programs",
		Summary:     "List live TV programs",
		Description: "Returns guide entries, optionally restricted to a comma separated list of channel IDs",
		Tags:        []string{"Live TV"},
	}, h.Programs)
}

// RegisterFileServer registers the playlist and guide exports.
// Routes:
//   - GET /livetv/playlist.m3u - M3U playlist pointing at the video proxy
//   - GET /livetv/guide.xml - XMLTV guide
func (h *LiveTVHandler) RegisterFileServer(router chi.Router) {
	router.Get("/livetv/playlist.m3u", h.servePlaylist)
	router.Get("/livetv/guide.xml", h.serveGuide)
}

// LiveChannelsInput is the input for listing channels.
type LiveChannelsInput struct{}

// LiveChannelsOutput is the output for listing channels.
type LiveChannelsOutput struct {
	Body struct {
		Channels []backend.LiveChannel `json:"channels"`
	}
}

// Channels lists live TV channels.
func (h *LiveTVHandler) Channels(ctx context.Context, _ *LiveChannelsInput) (*LiveChannelsOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	resp := &LiveChannelsOutput{}
	resp.Body.Channels = nonNil(state.Adapter.ListLiveChannels(ctx, state.Auth.UserID))
	return resp, nil
}

// LiveProgramsInput is the input for listing programs.
type LiveProgramsInput struct {
	ChannelIDs []string `query:"channelIds" doc:"Comma separated channel IDs"`
}

// LiveProgramsOutput is the output for listing programs.
type LiveProgramsOutput struct {
	Body struct {
		Programs []backend.LiveProgram `json:"programs"`
	}
}

// Programs lists guide entries.
func (h *LiveTVHandler) Programs(ctx context.Context, input *LiveProgramsInput) (*LiveProgramsOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	resp := &LiveProgramsOutput{}
	resp.Body.Programs = nonNil(state.Adapter.ListLivePrograms(ctx, state.Auth.UserID, splitIDs(input.ChannelIDs)))
	return resp, nil
}

func (h *LiveTVHandler) servePlaylist(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "audio/x-mpegurl", h.exporter.WritePlaylist)
}

func (h *LiveTVHandler) serveGuide(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "application/xml; charset=utf-8", h.exporter.WriteGuide)
}

func (h *LiveTVHandler) serveExport(w http.ResponseWriter, r *http.Request, contentType string,
	write func(w io.Writer, guide *livetv.Guide, baseURL string) error,
) {
	state := session.FromContext(r.Context())
	if !state.Authenticated() {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	guide, err := h.exporter.Fetch(r.Context(), state.Adapter, state.Auth.UserID, splitIDs(r.URL.Query()["channelIds"]))
	if err != nil {
		h.logger.Warn("live tv export failed", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, guide, requestBaseURL(r)); err != nil {
		h.logger.Error("writing live tv export failed", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

// splitIDs flattens repeated and comma separated id lists.
func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

// requestBaseURL returns scheme://host as seen by the client.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(fwd, ",")[0]))
	}
	return scheme + "://" + r.Host
}
