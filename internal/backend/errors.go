package backend

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/mediabridge/internal/models"
)

// Sentinel errors.
var (
	ErrNoActiveConnection = errors.New("no active media server connection")
	ErrNotAuthenticated   = errors.New("not authenticated with the media server")
	ErrUnknownBackendKind = errors.New("unknown backend kind")
)

// ConnectivityError means the backend could not be reached or timed out.
type ConnectivityError struct {
	Kind      models.BackendKind
	Operation string
	Err       error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s backend unreachable during %s: %v", e.Kind, e.Operation, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// AuthenticationError means every credential shape was rejected. The message
// never names a shape.
type AuthenticationError struct {
	Kind       models.BackendKind
	Attempts   int
	LastStatus int
}

func (e *AuthenticationError) Error() string {
	return "authentication failed"
}

// PlaybackNegotiationError means no playable plan could be produced.
// NextVariant names the fallback the client should request next, or -1.
type PlaybackNegotiationError struct {
	ItemID      string
	Reason      string
	NextVariant int
}

func (e *PlaybackNegotiationError) Error() string {
	return fmt.Sprintf("playback negotiation failed for item %s: %s", e.ItemID, e.Reason)
}

// ProxyStreamError is an upstream failure while relaying bytes.
type ProxyStreamError struct {
	// Phase is "connect" before response headers reached the client and
	// "stream" after.
	Phase string
	URL   string
	Err   error
}

func (e *ProxyStreamError) Error() string {
	return fmt.Sprintf("proxy %s failure: %v", e.Phase, e.Err)
}

func (e *ProxyStreamError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
