package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/mediabridge/internal/models"
)

// playbackPositionRepo implements PlaybackPositionRepository using GORM.
type playbackPositionRepo struct {
	db *gorm.DB
}

// NewPlaybackPositionRepository creates a new PlaybackPositionRepository.
func NewPlaybackPositionRepository(db *gorm.DB) *playbackPositionRepo {
	return &playbackPositionRepo{db: db}
}

// Upsert relies on the (connection_id, user_id, item_id) unique index, so
// repeated identical reports overwrite one row instead of adding rows. pos
// is refreshed from the stored row, including its original id.
func (r *playbackPositionRepo) Upsert(ctx context.Context, pos *models.PlaybackPosition) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "connection_id"}, {Name: "user_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"position_ticks", "event", "reported_at", "updated_at",
			}),
		}).Create(pos).Error; err != nil {
			return err
		}
		var stored models.PlaybackPosition
		if err := tx.Where("connection_id = ? AND user_id = ? AND item_id = ?", pos.ConnectionID, pos.UserID, pos.ItemID).
			First(&stored).Error; err != nil {
			return err
		}
		*pos = stored
		return nil
	})
	if err != nil {
		return fmt.Errorf("upserting playback position: %w", err)
	}
	return nil
}

func (r *playbackPositionRepo) Get(ctx context.Context, connectionID models.ULID, userID, itemID string) (*models.PlaybackPosition, error) {
	var pos models.PlaybackPosition
	err := r.db.WithContext(ctx).
		Where("connection_id = ? AND user_id = ? AND item_id = ?", connectionID, userID, itemID).
		First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting playback position: %w", err)
	}
	return &pos, nil
}

func (r *playbackPositionRepo) ListRecent(ctx context.Context, connectionID models.ULID, userID string, limit int) ([]*models.PlaybackPosition, error) {
	var out []*models.PlaybackPosition
	q := r.db.WithContext(ctx).
		Where("connection_id = ? AND user_id = ?", connectionID, userID).
		Order("reported_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing playback positions: %w", err)
	}
	return out, nil
}

func (r *playbackPositionRepo) DeleteByConnectionID(ctx context.Context, connectionID models.ULID) error {
	if err := r.db.WithContext(ctx).Where("connection_id = ?", connectionID).
		Delete(&models.PlaybackPosition{}).Error; err != nil {
		return fmt.Errorf("deleting playback positions: %w", err)
	}
	return nil
}

var _ PlaybackPositionRepository = (*playbackPositionRepo)(nil)
