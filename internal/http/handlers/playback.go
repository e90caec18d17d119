package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/service"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// PlaybackHandler handles playback reporting.
type PlaybackHandler struct {
	playback *service.PlaybackService
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(playback *service.PlaybackService) *PlaybackHandler {
	return &PlaybackHandler{playback: playback}
}

// Register registers the playback routes with the API.
func (h *PlaybackHandler) Register(api huma.API) {
	for _, ev := range []struct {
		event models.PlaybackEvent
		path  string
		id    string
		title string
	}{
		{models.PlaybackStarted, "start", "reportPlaybackStart", "Report playback start"},
		{models.PlaybackProgress, "progress", "reportPlaybackProgress", "Report playback progress"},
		{models.PlaybackStopped, "stop", "reportPlaybackStop", "Report playback stop"},
	} {
		huma.Register(api, huma.Operation{
			OperationID: ev.id,
			Method:      "POST",
			Path:        "/api/v1/playback/{itemId}/" + ev.path,
			Summary:     ev.title,
			Description: "Forwards the report to the media server and records the position locally",
			Tags:        []string{"Playback"},
		}, h.report(ev.event))
	}

	huma.Register(api, huma.Operation{
		OperationID: "getPlaybackPosition",
		Method:      "GET",
		Path:        "/api/v1/playback/{itemId}",
		Summary:     "Get playback position",
		Description: "Returns the last recorded position for the item",
		Tags:        []string{"Playback"},
	}, h.Position)

	huma.Register(api, huma.Operation{
		OperationID: "listRecentPlayback",
		Method:      "GET",
		Path:        "/api/v1/playback",
		Summary:     "List recent playback",
		Description: "Returns the user's most recently reported positions",
		Tags:        []string{"Playback"},
	}, h.Recent)
}

// PlaybackReportInput is the input for a playback report.
type PlaybackReportInput struct {
	ItemID string `path:"itemId" doc:"Item ID"`
	Body   struct {
		PositionTicks int64 `json:"positionTicks" minimum:"0" doc:"Position in 100ns ticks"`
	}
}

// PlaybackReportOutput is the output for a playback report.
type PlaybackReportOutput struct {
	Body *service.PlaybackReport
}

func (h *PlaybackHandler) report(event models.PlaybackEvent) func(context.Context, *PlaybackReportInput) (*PlaybackReportOutput, error) {
	return func(ctx context.Context, input *PlaybackReportInput) (*PlaybackReportOutput, error) {
		state, err := authenticatedState(ctx)
		if err != nil {
			return nil, err
		}
		rep, err := h.playback.Report(ctx, state, event, input.ItemID, input.Body.PositionTicks)
		if err != nil {
			return nil, apiError(err)
		}
		return &PlaybackReportOutput{Body: rep}, nil
	}
}

// PlaybackPositionInput identifies one item.
type PlaybackPositionInput struct {
	ItemID string `path:"itemId" doc:"Item ID"`
}

// PlaybackPositionOutput is the output for a position lookup.
type PlaybackPositionOutput struct {
	Body *models.PlaybackPosition
}

// Position returns the last recorded position.
func (h *PlaybackHandler) Position(ctx context.Context, input *PlaybackPositionInput) (*PlaybackPositionOutput, error) {
	pos, err := h.playback.Position(ctx, session.FromContext(ctx), input.ItemID)
	if err != nil {
		return nil, apiError(err)
	}
	if pos == nil {
		return nil, huma.Error404NotFound("no playback recorded for item")
	}
	return &PlaybackPositionOutput{Body: pos}, nil
}

// RecentPlaybackInput is the input for recent playback.
type RecentPlaybackInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Maximum results (default 20)"`
}

// RecentPlaybackOutput is the output for recent playback.
type RecentPlaybackOutput struct {
	Body struct {
		Positions []*models.PlaybackPosition `json:"positions"`
	}
}

// Recent returns the most recently reported positions.
func (h *PlaybackHandler) Recent(ctx context.Context, input *RecentPlaybackInput) (*RecentPlaybackOutput, error) {
	positions, err := h.playback.Recent(ctx, session.FromContext(ctx), input.Limit)
	if err != nil {
		return nil, apiError(err)
	}
	resp := &RecentPlaybackOutput{}
	resp.Body.Positions = nonNil(positions)
	return resp, nil
}
