package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// PlaybackEvent is the last reported playback transition.
type PlaybackEvent string

const (
	PlaybackStarted  PlaybackEvent = "started"
	PlaybackProgress PlaybackEvent = "progress"
	PlaybackStopped  PlaybackEvent = "stopped"
)

// PlaybackPosition is the latest reported position for a (connection, user, item).
// Reports overwrite each other; last write wins.
type PlaybackPosition struct {
	BaseModel

	ConnectionID  ULID          `gorm:"not null;type:varchar(26);uniqueIndex:idx_playback_position_key" json:"connectionId"`
	UserID        string        `gorm:"not null;size:64;uniqueIndex:idx_playback_position_key" json:"userId"`
	ItemID        string        `gorm:"not null;size:64;uniqueIndex:idx_playback_position_key" json:"itemId"`
	PositionTicks int64         `gorm:"not null;default:0" json:"positionTicks"`
	Event         PlaybackEvent `gorm:"not null;size:16" json:"event"`
	ReportedAt    time.Time     `gorm:"not null" json:"reportedAt"`
}

// TableName returns the table name for PlaybackPosition.
func (PlaybackPosition) TableName() string {
	return "playback_positions"
}

// Validate checks required fields.
func (p *PlaybackPosition) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrUserIDRequired
	}
	if strings.TrimSpace(p.ItemID) == "" {
		return ErrItemIDRequired
	}
	if p.PositionTicks < 0 {
		return ErrValidation{Field: "position_ticks", Message: "must not be negative"}
	}
	return nil
}

// BeforeCreate generates the id and validates the row.
func (p *PlaybackPosition) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}
