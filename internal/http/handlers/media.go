package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/playback"
)

// MediaHandler exposes audio track selection and stream planning.
type MediaHandler struct {
	planner *playback.Planner
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(planner *playback.Planner) *MediaHandler {
	return &MediaHandler{planner: planner}
}

// Register registers the media routes with the API.
func (h *MediaHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listAudioTracks",
		Method:      "GET",
		Path:        "/api/v1/media/{itemId}/audio-tracks",
		Summary:     "List audio tracks",
		Description: "Returns the item's audio tracks and the track recommended by the preferred languages",
		Tags:        []string{"Media"},
	}, h.AudioTracks)

	huma.Register(api, huma.Operation{
		OperationID: "listStreamPlans",
		Method:      "GET",
		Path:        "/api/v1/media/{itemId}/stream-plans",
		Summary:     "List stream plans",
		Description: "Returns the negotiated plan and the ordered fallback variants as proxy URLs",
		Tags:        []string{"Media"},
	}, h.StreamPlans)
}

// MediaItemInput identifies one playable item.
type MediaItemInput struct {
	ItemID string `path:"itemId" doc:"Item ID"`
}

// AudioTracksOutput is the output for listing audio tracks.
type AudioTracksOutput struct {
	Body struct {
		AudioTracks      []playback.AudioTrack `json:"audioTracks"`
		RecommendedTrack *int                  `json:"recommendedTrack"`
	}
}

// AudioTracks lists an item's audio tracks.
func (h *MediaHandler) AudioTracks(ctx context.Context, input *MediaItemInput) (*AudioTracksOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	item, err := h.planner.Item(ctx, state.Adapter, state.Auth.UserID, input.ItemID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	resp := &AudioTracksOutput{}
	resp.Body.AudioTracks, resp.Body.RecommendedTrack = h.planner.AudioTracks(item)
	return resp, nil
}

// StreamPlansInput is the input for listing stream plans.
type StreamPlansInput struct {
	ItemID     string `path:"itemId" doc:"Item ID"`
	AudioTrack int    `query:"audioTrack" default:"-1" doc:"Explicit audio stream index; -1 negotiates"`
}

// PlanResponse describes the negotiated plan without backend credentials.
type PlanResponse struct {
	Mode            backend.StreamMode `json:"mode"`
	TranscodeForced bool               `json:"transcodeForced"`
	AudioTrack      *int               `json:"audioTrack"`
	URL             string             `json:"url"`
}

// StreamPlansOutput is the output for listing stream plans.
type StreamPlansOutput struct {
	Body struct {
		ItemID    string              `json:"itemId"`
		Plan      PlanResponse        `json:"plan"`
		Fallbacks []playback.Fallback `json:"fallbacks"`
	}
}

// StreamPlans negotiates the default plan and lists the fallbacks.
func (h *MediaHandler) StreamPlans(ctx context.Context, input *StreamPlansInput) (*StreamPlansOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	var audio *int
	if input.AudioTrack >= 0 {
		idx := input.AudioTrack
		audio = &idx
	}

	plan, err := h.planner.Plan(ctx, state.Adapter, playback.Request{
		ItemID:     input.ItemID,
		UserID:     state.Auth.UserID,
		AudioIndex: audio,
	})
	if err != nil {
		var negErr *backend.PlaybackNegotiationError
		if errors.As(err, &negErr) {
			return nil, negotiationError(negErr, audio)
		}
		return nil, apiError(err)
	}

	pinned := audio
	if pinned == nil && plan.TranscodeForced {
		pinned = plan.AudioTrackIndex
	}

	resp := &StreamPlansOutput{}
	resp.Body.ItemID = plan.ItemID
	resp.Body.Plan = PlanResponse{
		Mode:            plan.Mode,
		TranscodeForced: plan.TranscodeForced,
		AudioTrack:      plan.AudioTrackIndex,
		URL:             playback.ProxyURL(plan.ItemID, pinned, nil),
	}
	resp.Body.Fallbacks = playback.Fallbacks(plan.ItemID, pinned)
	return resp, nil
}

// notFoundOr maps a missing item to 404.
func notFoundOr(err error) error {
	var negErr *backend.PlaybackNegotiationError
	if errors.As(err, &negErr) && negErr.Reason == playback.ReasonItemNotFound {
		return huma.Error404NotFound("item not found")
	}
	return apiError(err)
}
