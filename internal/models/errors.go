package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

var (
	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidURL indicates a malformed URL.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrInvalidBackendKind indicates an unknown media server flavor.
	ErrInvalidBackendKind = errors.New("invalid backend kind: must be 'jellyfin' or 'emby'")

	// ErrInvalidPort indicates a port outside 0-65535.
	ErrInvalidPort = errors.New("port must be between 0 and 65535")

	// ErrSessionIDRequired indicates an active session record without a session id.
	ErrSessionIDRequired = errors.New("session_id is required")

	// ErrUserIDRequired indicates a record without a backend user id.
	ErrUserIDRequired = errors.New("user_id is required")

	// ErrItemIDRequired indicates a playback record without an item id.
	ErrItemIDRequired = errors.New("item_id is required")
)
var (
	// ErrConnectionNotFound indicates no stored connection has the requested id.
	ErrConnectionNotFound = errors.New("connection not found")
)
