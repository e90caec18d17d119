package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/observability"
	"github.com/jmylchreest/mediabridge/internal/repository"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// PlaybackReport is the outcome of one playback report.
type PlaybackReport struct {
	Event models.PlaybackEvent `json:"event"`
	// Acknowledged reports whether the media server accepted the report.
	// Local recording happens regardless.
	Acknowledged bool                     `json:"acknowledged"`
	Position     *models.PlaybackPosition `json:"position"`
}

// PlaybackService forwards playback reports to the active backend and
// records the latest position locally.
type PlaybackService struct {
	positions repository.PlaybackPositionRepository
	now       func() time.Time
	logger    *slog.Logger
}

// NewPlaybackService creates a new playback service.
func NewPlaybackService(positions repository.PlaybackPositionRepository) *PlaybackService {
	return &PlaybackService{
		positions: positions,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *PlaybackService) WithLogger(logger *slog.Logger) *PlaybackService {
	s.logger = observability.WithComponent(logger, "playback")
	return s
}

// Report forwards event for itemID and upserts the local position. Reports
// for one (connection, user, item) overwrite each other, so repeating a
// stop is harmless.
func (s *PlaybackService) Report(ctx context.Context, state *session.State, event models.PlaybackEvent, itemID string, positionTicks int64) (*PlaybackReport, error) {
	if !state.Authenticated() {
		return nil, backend.ErrNotAuthenticated
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, models.ErrItemIDRequired
	}
	if positionTicks < 0 {
		positionTicks = 0
	}

	userID := state.Auth.UserID
	var ack bool
	switch event {
	case models.PlaybackStarted:
		ack = state.Adapter.ReportPlaybackStart(ctx, userID, itemID, positionTicks)
	case models.PlaybackProgress:
		ack = state.Adapter.ReportPlaybackProgress(ctx, userID, itemID, positionTicks)
	case models.PlaybackStopped:
		ack = state.Adapter.ReportPlaybackStop(ctx, userID, itemID, positionTicks)
	default:
		return nil, models.ErrValidation{Field: "event", Message: fmt.Sprintf("unknown playback event %q", event)}
	}

	pos := &models.PlaybackPosition{
		ConnectionID:  state.Connection.ID,
		UserID:        userID,
		ItemID:        itemID,
		PositionTicks: positionTicks,
		Event:         event,
		ReportedAt:    s.now().UTC(),
	}
	if err := s.positions.Upsert(ctx, pos); err != nil {
		return nil, fmt.Errorf("recording playback position: %w", err)
	}

	if !ack {
		s.logger.Debug("playback report not acknowledged",
			slog.String("event", string(event)),
			slog.String("item_id", itemID))
	}
	return &PlaybackReport{Event: event, Acknowledged: ack, Position: pos}, nil
}

// Position returns the last recorded position for itemID, or nil.
func (s *PlaybackService) Position(ctx context.Context, state *session.State, itemID string) (*models.PlaybackPosition, error) {
	if !state.Authenticated() {
		return nil, backend.ErrNotAuthenticated
	}
	return s.positions.Get(ctx, state.Connection.ID, state.Auth.UserID, itemID)
}

// Recent returns the user's most recently reported positions.
func (s *PlaybackService) Recent(ctx context.Context, state *session.State, limit int) ([]*models.PlaybackPosition, error) {
	if !state.Authenticated() {
		return nil, backend.ErrNotAuthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.positions.ListRecent(ctx, state.Connection.ID, state.Auth.UserID, limit)
}
