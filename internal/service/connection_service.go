// Package service provides the business logic layer for mediabridge operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/observability"
	"github.com/jmylchreest/mediabridge/internal/repository"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// LoginRequest is a credential login against a (possibly new) connection.
type LoginRequest struct {
	Kind        string
	URL         string
	Port        int
	Username    string
	Password    string
	DisplayName string
}

// ConnectionService manages stored connections and the active one.
type ConnectionService struct {
	repo      repository.ConnectionRepository
	positions repository.PlaybackPositionRepository
	factory   *backend.Factory
	registry  *session.Registry
	now       func() time.Time
	logger    *slog.Logger
}

// NewConnectionService creates a new connection service.
func NewConnectionService(
	repo repository.ConnectionRepository,
	positions repository.PlaybackPositionRepository,
	factory *backend.Factory,
	registry *session.Registry,
) *ConnectionService {
	return &ConnectionService{
		repo:      repo,
		positions: positions,
		factory:   factory,
		registry:  registry,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *ConnectionService) WithLogger(logger *slog.Logger) *ConnectionService {
	s.logger = observability.WithComponent(logger, "connections")
	return s
}

// List returns all stored connections.
func (s *ConnectionService) List(ctx context.Context) ([]*models.Connection, error) {
	conns, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	return conns, nil
}

// GetByID returns a connection or models.ErrConnectionNotFound.
func (s *ConnectionService) GetByID(ctx context.Context, id models.ULID) (*models.Connection, error) {
	conn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}
	if conn == nil {
		return nil, models.ErrConnectionNotFound
	}
	return conn, nil
}

// Create stores a new connection. It is not activated.
func (s *ConnectionService) Create(ctx context.Context, conn *models.Connection) error {
	conn.Sanitize()
	if err := conn.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	conn.IsActive = false
	if err := s.repo.Create(ctx, conn); err != nil {
		return fmt.Errorf("creating connection: %w", err)
	}
	s.logger.Info("created connection",
		slog.String("id", conn.ID.String()),
		slog.String("kind", string(conn.Kind)),
		slog.String("url", conn.Endpoint()))
	return nil
}

// Delete removes a connection and its recorded positions. Deleting the
// active connection leaves the process disconnected.
func (s *ConnectionService) Delete(ctx context.Context, id models.ULID) error {
	conn, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if cur := s.registry.Current(); cur.Connected() && cur.Connection.ID == id {
		s.registry.Clear(ctx)
		s.registry.Deactivate()
	}

	if err := s.positions.DeleteByConnectionID(ctx, id); err != nil {
		return fmt.Errorf("deleting playback positions: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	s.logger.Info("deleted connection", slog.String("id", id.String()), slog.String("connection", conn.Label()))
	return nil
}

// Activate makes a stored connection the active one and, when it carries
// a credential key, authenticates with it.
func (s *ConnectionService) Activate(ctx context.Context, id models.ULID) (*session.State, error) {
	conn, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	adapter, err := s.factory.Create(conn)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, conn.ID); err != nil {
		return nil, fmt.Errorf("activating connection: %w", err)
	}
	conn.IsActive = true

	state := s.registry.Activate(conn, adapter)
	return s.authenticateWithKey(ctx, state), nil
}

// Test reports whether a stored connection's server is reachable.
func (s *ConnectionService) Test(ctx context.Context, id models.ULID) (bool, error) {
	conn, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	adapter, err := s.factory.Create(conn)
	if err != nil {
		return false, err
	}
	return adapter.TestConnection(ctx), nil
}

// Restore activates the connection marked active in the database, if any.
// Startup continues without a connection when none is stored.
func (s *ConnectionService) Restore(ctx context.Context) (*session.State, error) {
	conn, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active connection: %w", err)
	}
	if conn == nil {
		s.logger.Info("no active connection stored")
		return s.registry.Current(), nil
	}
	adapter, err := s.factory.Create(conn)
	if err != nil {
		return nil, err
	}
	state := s.registry.Activate(conn, adapter)
	return s.authenticateWithKey(ctx, state), nil
}

// Login authenticates against the connection described by req, creating
// it on first use, and makes it the active connection. Credentials are
// verified before anything is stored or activated.
func (s *ConnectionService) Login(ctx context.Context, req LoginRequest) (*session.State, error) {
	kind, err := models.ParseBackendKind(req.Kind)
	if err != nil {
		return nil, err
	}
	candidate := &models.Connection{
		Kind:        kind,
		BaseURL:     req.URL,
		Port:        req.Port,
		DisplayName: req.DisplayName,
	}
	candidate.Sanitize()
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	conn, err := s.repo.FindByEndpoint(ctx, candidate.Kind, candidate.BaseURL, candidate.Port)
	if err != nil {
		return nil, fmt.Errorf("looking up connection: %w", err)
	}
	if conn == nil {
		conn = candidate
	} else if candidate.DisplayName != "" {
		conn.DisplayName = candidate.DisplayName
	}

	adapter, err := s.factory.Create(conn)
	if err != nil {
		return nil, err
	}

	result := adapter.AuthenticateWithCredentials(ctx, req.Username, req.Password)
	if result == nil {
		return nil, &backend.AuthenticationError{Kind: kind}
	}

	now := s.now().UTC()
	conn.LastConnectedAt = &now
	if conn.ID.IsZero() {
		if err := s.repo.Create(ctx, conn); err != nil {
			return nil, fmt.Errorf("storing connection: %w", err)
		}
	} else if err := s.repo.Update(ctx, conn); err != nil {
		return nil, fmt.Errorf("updating connection: %w", err)
	}
	if err := s.repo.SetActive(ctx, conn.ID); err != nil {
		return nil, fmt.Errorf("activating connection: %w", err)
	}
	conn.IsActive = true

	state := s.registry.Activate(conn, adapter)
	state, err = s.registry.Authenticate(state, authSession(result, now))
	if err != nil {
		adapter.EndSession(ctx)
		return nil, err
	}

	s.logger.Info("logged in",
		slog.String("connection", conn.Label()),
		slog.String("user", result.Username))
	return state, nil
}

// Logout drops the credential of the active connection.
func (s *ConnectionService) Logout(ctx context.Context) {
	s.registry.Clear(ctx)
}

// Current returns the registry's snapshot.
func (s *ConnectionService) Current() *session.State {
	return s.registry.Current()
}

func (s *ConnectionService) authenticateWithKey(ctx context.Context, state *session.State) *session.State {
	if !state.Connection.HasCredentialKey() {
		return state
	}
	result := state.Adapter.AuthenticateWithKey(ctx)
	if result == nil {
		s.logger.Warn("credential key rejected", slog.String("connection", state.Connection.Label()))
		return state
	}
	next, err := s.registry.Authenticate(state, authSession(result, s.now().UTC()))
	if errors.Is(err, session.ErrStaleConnection) {
		s.logger.Debug("connection switched during key authentication")
		return s.registry.Current()
	}
	return next
}

func authSession(r *backend.AuthResult, at time.Time) *session.AuthSession {
	return &session.AuthSession{
		UserID:          r.UserID,
		Username:        r.Username,
		BearerToken:     r.Token,
		IsAdministrator: r.IsAdministrator,
		ServerID:        r.ServerID,
		AuthenticatedAt: at,
	}
}
