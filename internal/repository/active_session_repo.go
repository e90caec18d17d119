package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jmylchreest/mediabridge/internal/models"
)

// activeSessionRepo implements ActiveSessionRepository using GORM.
type activeSessionRepo struct {
	db *gorm.DB
}

// NewActiveSessionRepository creates a new ActiveSessionRepository.
func NewActiveSessionRepository(db *gorm.DB) *activeSessionRepo {
	return &activeSessionRepo{db: db}
}

func (r *activeSessionRepo) Create(ctx context.Context, session *models.ActiveSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("creating active session: %w", err)
	}
	return nil
}

func (r *activeSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.ActiveSession, error) {
	var session models.ActiveSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting active session: %w", err)
	}
	return &session, nil
}

// Touch only matches rows whose stored activity is older than at, which keeps
// last_activity_at monotonic even when status polls race.
func (r *activeSessionRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	at = at.UTC()
	err := r.db.WithContext(ctx).Model(&models.ActiveSession{}).
		Where("session_id = ? AND last_activity_at < ?", sessionID, at).
		UpdateColumns(map[string]any{"last_activity_at": at, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("touching active session: %w", err)
	}
	return nil
}

func (r *activeSessionRepo) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Delete(&models.ActiveSession{}).Error; err != nil {
		return fmt.Errorf("deleting active session: %w", err)
	}
	return nil
}

func (r *activeSessionRepo) ListByUserID(ctx context.Context, userID string) ([]*models.ActiveSession, error) {
	var sessions []*models.ActiveSession
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("last_activity_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("listing active sessions for user: %w", err)
	}
	return sessions, nil
}

func (r *activeSessionRepo) ListAll(ctx context.Context) ([]*models.ActiveSession, error) {
	var sessions []*models.ActiveSession
	if err := r.db.WithContext(ctx).Order("last_activity_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("listing active sessions: %w", err)
	}
	return sessions, nil
}

func (r *activeSessionRepo) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("last_activity_at < ?", cutoff.UTC()).Delete(&models.ActiveSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweeping idle sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *activeSessionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ActiveSession{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting active sessions: %w", err)
	}
	return n, nil
}

var _ ActiveSessionRepository = (*activeSessionRepo)(nil)
