package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/observability"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// ClientInfo describes the device making a request.
type ClientInfo struct {
	SessionID        string
	DeviceDescriptor string
	OriginAddress    string
}

// LoginResult is a successful login.
type LoginResult struct {
	State  *session.State
	Record *models.ActiveSession
}

// ConnectionStatus is the caller's view of the active connection.
type ConnectionStatus struct {
	State    *session.State
	Sessions []*models.ActiveSession
}

// AuthService ties credential logins to active session records.
type AuthService struct {
	connections *ConnectionService
	records     *session.Records
	logger      *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(connections *ConnectionService, records *session.Records) *AuthService {
	return &AuthService{
		connections: connections,
		records:     records,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *AuthService) WithLogger(logger *slog.Logger) *AuthService {
	s.logger = observability.WithComponent(logger, "auth")
	return s
}

// Login authenticates and opens a session record for the client. A record
// failure does not fail the login.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*LoginResult, error) {
	state, err := s.connections.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	if client.SessionID != "" {
		if err := s.records.Close(ctx, client.SessionID); err != nil {
			s.logger.Warn("closing previous session record failed", slog.Any("error", err))
		}
	}

	rec, err := s.records.Open(ctx, session.OpenParams{
		UserID:           state.Auth.UserID,
		Username:         state.Auth.Username,
		ConnectionLabel:  state.Connection.Label(),
		DeviceDescriptor: client.DeviceDescriptor,
		OriginAddress:    client.OriginAddress,
	})
	if err != nil {
		observability.WithError(s.logger, err).Warn("opening session record failed")
	}
	return &LoginResult{State: state, Record: rec}, nil
}

// Logout clears the credential and deletes the caller's own record.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	s.connections.Logout(ctx)
	if err := s.records.Close(ctx, sessionID); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Status touches the caller's record and lists the authenticated user's
// sessions.
func (s *AuthService) Status(ctx context.Context, state *session.State, sessionID string) (*ConnectionStatus, error) {
	if err := s.records.Touch(ctx, sessionID); err != nil {
		observability.WithError(s.logger, err).Warn("touching session record failed")
	}

	status := &ConnectionStatus{State: state, Sessions: []*models.ActiveSession{}}
	if !state.Authenticated() {
		return status, nil
	}
	sessions, err := s.records.ListForUser(ctx, state.Auth.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	status.Sessions = sessions
	return status, nil
}

// Sessions lists records for userID, or all records when userID is empty.
func (s *AuthService) Sessions(ctx context.Context, userID string) ([]*models.ActiveSession, error) {
	if userID == "" {
		return s.records.ListAll(ctx)
	}
	return s.records.ListForUser(ctx, userID)
}
