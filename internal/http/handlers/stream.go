package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/playback"
	"github.com/jmylchreest/mediabridge/internal/proxy"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// StreamHandler relays backend media streams. Backend URLs and tokens never
// reach the client.
type StreamHandler struct {
	planner *playback.Planner
	proxy   *proxy.RangeProxy
	logger  *slog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(planner *playback.Planner, rp *proxy.RangeProxy) *StreamHandler {
	return &StreamHandler{planner: planner, proxy: rp, logger: slog.Default()}
}

// WithLogger sets the logger for the handler.
func (h *StreamHandler) WithLogger(logger *slog.Logger) *StreamHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// RegisterRoutes registers the raw stream routes.
// Routes:
//   - GET|HEAD /video-proxy/{itemId}?audioTrack=N&variant=V - planned stream
//   - GET|HEAD /video-proxy/{itemId}/hls/* - HLS playlists and segments
func (h *StreamHandler) RegisterRoutes(router chi.Router) {
	router.Get("/video-proxy/{itemId}", h.serveStream)
	router.Head("/video-proxy/{itemId}", h.serveStream)
	router.Get("/video-proxy/{itemId}/hls/*", h.serveSegment)
	router.Head("/video-proxy/{itemId}/hls/*", h.serveSegment)
}

func (h *StreamHandler) serveStream(w http.ResponseWriter, r *http.Request) {
	state := session.FromContext(r.Context())
	if !state.Authenticated() {
		writeProblem(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	itemID := chi.URLParam(r, "itemId")

	audio, err := optionalInt(r, "audioTrack")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "audioTrack must be an integer")
		return
	}
	variant, err := optionalInt(r, "variant")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "variant must be an integer")
		return
	}

	plan, err := h.planner.Plan(r.Context(), state.Adapter, playback.Request{
		ItemID:        itemID,
		UserID:        state.Auth.UserID,
		AudioIndex:    audio,
		Variant:       variant,
		PlaySessionID: uuid.NewString(),
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			w.WriteHeader(StatusClientClosedRequest)
			return
		case errors.Is(err, context.DeadlineExceeded):
			writeProblem(w, http.StatusServiceUnavailable, "media server timed out")
			return
		}
		var negErr *backend.PlaybackNegotiationError
		if errors.As(err, &negErr) {
			if negErr.Reason == playback.ReasonItemNotFound {
				writeProblem(w, http.StatusNotFound, "item not found")
				return
			}
			writeJSON(w, http.StatusUnprocessableEntity, negotiationError(negErr, audio))
			return
		}
		writeProblem(w, http.StatusInternalServerError, "stream planning failed")
		return
	}

	h.logger.Debug("relaying stream",
		slog.String("item_id", itemID),
		slog.String("mode", string(plan.Mode)),
		slog.Int("variant", plan.Variant))
	h.relay(w, r, proxy.Target{URL: plan.BackendURL, ItemID: plan.ItemID})
}

func (h *StreamHandler) serveSegment(w http.ResponseWriter, r *http.Request) {
	state := session.FromContext(r.Context())
	if !state.Authenticated() {
		writeProblem(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	itemID := chi.URLParam(r, "itemId")
	target := state.Adapter.ResolveRelativeURL(itemID, chi.URLParam(r, "*"), r.URL.RawQuery)
	if target == "" {
		writeProblem(w, http.StatusNotFound, "segment not found")
		return
	}
	h.relay(w, r, proxy.Target{URL: target, ItemID: itemID})
}

// relay pipes the target. A failure after the status line was sent can
// only be signalled by aborting the connection.
func (h *StreamHandler) relay(w http.ResponseWriter, r *http.Request, target proxy.Target) {
	err := h.proxy.Relay(w, r, target)
	var pse *backend.ProxyStreamError
	if errors.As(err, &pse) && pse.Phase == proxy.PhaseStream {
		panic(http.ErrAbortHandler)
	}
}

func optionalInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"title":  http.StatusText(status),
		"detail": detail,
	})
}
