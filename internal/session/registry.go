// Package session holds the process-wide active connection snapshot and the
// persisted bookkeeping of logged-in client devices.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/observability"
)

// ErrStaleConnection means the connection changed while authenticating.
var ErrStaleConnection = errors.New("active connection changed during authentication")

// AuthSession is the credential obtained for the active connection.
type AuthSession struct {
	UserID          string
	Username        string
	BearerToken     string
	IsAdministrator bool
	ServerID        string
	AuthenticatedAt time.Time
}

// State is an immutable snapshot of the active connection. A new snapshot
// replaces the old one on every change, so a request that resolved a State
// keeps a consistent view for its whole lifetime.
type State struct {
	Connection *models.Connection
	Adapter    backend.Adapter
	Auth       *AuthSession

	generation uint64
}

// Connected reports whether a connection is active.
func (s *State) Connected() bool {
	return s != nil && s.Adapter != nil && s.Connection != nil
}

// Authenticated reports whether the active connection has a credential.
func (s *State) Authenticated() bool {
	return s.Connected() && s.Auth != nil
}

// Registry owns the current State.
type Registry struct {
	state  atomic.Pointer[State]
	gen    atomic.Uint64
	logger *slog.Logger
}

// NewRegistry creates a registry with no active connection.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: observability.WithComponent(logger, "session")}
	r.state.Store(&State{})
	return r
}

// Current returns the current snapshot. It is never nil.
func (r *Registry) Current() *State {
	return r.state.Load()
}

// Activate makes conn the active connection. Any credential held for the
// previous connection is discarded.
func (r *Registry) Activate(conn *models.Connection, adapter backend.Adapter) *State {
	next := &State{Connection: conn, Adapter: adapter, generation: r.gen.Add(1)}
	prev := r.state.Swap(next)
	if prev.Connected() {
		r.logger.Info("active connection switched",
			slog.String("from", prev.Connection.Label()),
			slog.String("to", conn.Label()),
		)
	} else {
		r.logger.Info("connection activated", slog.String("connection", conn.Label()))
	}
	return next
}

// Deactivate drops the active connection entirely.
func (r *Registry) Deactivate() {
	r.state.Store(&State{generation: r.gen.Add(1)})
}

// Authenticate attaches auth to the snapshot it was obtained from. It fails
// with ErrStaleConnection when another connection was activated meanwhile.
func (r *Registry) Authenticate(from *State, auth *AuthSession) (*State, error) {
	for {
		cur := r.state.Load()
		if !cur.Connected() || cur.generation != from.generation {
			return nil, ErrStaleConnection
		}
		next := *cur
		next.Auth = auth
		if r.state.CompareAndSwap(cur, &next) {
			return &next, nil
		}
	}
}

// Clear drops the credential and ends the backend session. The connection
// stays active.
func (r *Registry) Clear(ctx context.Context) {
	for {
		cur := r.state.Load()
		if cur.Auth == nil {
			return
		}
		next := *cur
		next.Auth = nil
		if r.state.CompareAndSwap(cur, &next) {
			if cur.Adapter != nil {
				cur.Adapter.EndSession(ctx)
			}
			r.logger.Info("authentication cleared", slog.String("user_id", cur.Auth.UserID))
			return
		}
	}
}
