// Package repository defines data access interfaces for mediabridge entities
// and their GORM implementations.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/mediabridge/internal/models"
)

// ConnectionRepository defines operations for stored media server connections.
type ConnectionRepository interface {
	// Create creates a new connection.
	Create(ctx context.Context, conn *models.Connection) error
	// GetByID retrieves a connection by ID. Returns nil, nil when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.Connection, error)
	// GetAll retrieves all connections ordered by display name.
	GetAll(ctx context.Context) ([]*models.Connection, error)
	// GetActive retrieves the active connection, or nil if none is active.
	GetActive(ctx context.Context) (*models.Connection, error)
	// FindByEndpoint looks a connection up by its unique (kind, base URL, port).
	FindByEndpoint(ctx context.Context, kind models.BackendKind, baseURL string, port int) (*models.Connection, error)
	// Update saves all fields of an existing connection.
	Update(ctx context.Context, conn *models.Connection) error
	// Delete hard-deletes a connection by ID.
	Delete(ctx context.Context, id models.ULID) error
	// SetActive marks id active and every other connection inactive.
	SetActive(ctx context.Context, id models.ULID) error
	// ClearActive marks every connection inactive.
	ClearActive(ctx context.Context) error
}

// ActiveSessionRepository defines operations for active session bookkeeping.
type ActiveSessionRepository interface {
	// Create inserts a session record.
	Create(ctx context.Context, session *models.ActiveSession) error
	// GetBySessionID retrieves a record by its session id. Returns nil, nil when absent.
	GetBySessionID(ctx context.Context, sessionID string) (*models.ActiveSession, error)
	// Touch advances last_activity_at to at. Earlier timestamps are ignored.
	Touch(ctx context.Context, sessionID string, at time.Time) error
	// DeleteBySessionID removes one record.
	DeleteBySessionID(ctx context.Context, sessionID string) error
	// ListByUserID returns a user's records, most recently active first.
	ListByUserID(ctx context.Context, userID string) ([]*models.ActiveSession, error)
	// ListAll returns every record, most recently active first.
	ListAll(ctx context.Context) ([]*models.ActiveSession, error)
	// DeleteIdleBefore removes records whose last activity is before cutoff.
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Count returns the number of records.
	Count(ctx context.Context) (int64, error)
}

// PlaybackPositionRepository defines operations for reported playback positions.
type PlaybackPositionRepository interface {
	// Upsert inserts or overwrites the position for (connection, user, item).
	Upsert(ctx context.Context, pos *models.PlaybackPosition) error
	// Get retrieves the position for (connection, user, item). Returns nil, nil when absent.
	Get(ctx context.Context, connectionID models.ULID, userID, itemID string) (*models.PlaybackPosition, error)
	// ListRecent returns a user's most recently reported positions.
	ListRecent(ctx context.Context, connectionID models.ULID, userID string, limit int) ([]*models.PlaybackPosition, error)
	// DeleteByConnectionID removes all positions recorded for a connection.
	DeleteByConnectionID(ctx context.Context, connectionID models.ULID) error
}

// SettingRepository stores runtime generated key/value settings.
type SettingRepository interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key, value string) error
}
