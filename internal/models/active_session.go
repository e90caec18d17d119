package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ActiveSession records one logged-in client device. Rows are informational:
// they are listed for visibility and never consulted for access decisions.
type ActiveSession struct {
	BaseModel

	// SessionID is the opaque id carried by the client cookie.
	SessionID string `gorm:"not null;size:64;uniqueIndex" json:"sessionId"`

	UserID   string `gorm:"not null;size:64;index:idx_active_session_user" json:"userId"`
	Username string `gorm:"size:255" json:"username"`

	// ConnectionLabel is the display name of the connection used at login.
	ConnectionLabel string `gorm:"size:255" json:"connectionLabel"`

	// DeviceDescriptor is derived from the client's User-Agent and device name.
	DeviceDescriptor string `gorm:"size:512" json:"deviceDescriptor"`

	// OriginAddress is the client IP as seen after proxy header resolution.
	OriginAddress string `gorm:"size:64" json:"originAddress"`

	// LastActivityAt only moves forward until the row is deleted.
	LastActivityAt time.Time `gorm:"not null;index:idx_active_session_user" json:"lastActivityAt"`
}

// TableName returns the table name for ActiveSession.
func (ActiveSession) TableName() string {
	return "active_sessions"
}

// Validate checks required fields.
func (s *ActiveSession) Validate() error {
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrSessionIDRequired
	}
	if strings.TrimSpace(s.UserID) == "" {
		return ErrUserIDRequired
	}
	return nil
}

// IdleSince reports whether the session has seen no activity since cutoff.
func (s *ActiveSession) IdleSince(cutoff time.Time) bool {
	return s.LastActivityAt.Before(cutoff)
}

// BeforeCreate generates the id, stamps activity and validates the row.
func (s *ActiveSession) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if s.LastActivityAt.IsZero() {
		s.LastActivityAt = time.Now()
	}
	return s.Validate()
}
