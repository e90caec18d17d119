package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/session"
)

func TestConnectionService_LoginCreatesAndActivates(t *testing.T) {
	for _, kind := range []models.BackendKind{models.BackendJellyfin, models.BackendEmby} {
		t.Run(string(kind), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			srv := newServer(t, kind)

			state := login(t, f, srv, "alice", "secret")
			require.True(t, state.Authenticated())
			assert.Equal(t, "u1", state.Auth.UserID)
			assert.NotEmpty(t, state.Auth.BearerToken)
			assert.Same(t, state, f.registry.Current())

			active, err := f.connRepo.GetActive(ctx)
			require.NoError(t, err)
			require.NotNil(t, active)
			assert.Equal(t, kind, active.Kind)
			assert.NotNil(t, active.LastConnectedAt)
		})
	}
}

func TestConnectionService_LoginUpsertsByEndpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)

	first := login(t, f, srv, "alice", "secret")
	second := login(t, f, srv, "bob", "hunter2")

	assert.Equal(t, first.Connection.ID, second.Connection.ID)
	assert.Equal(t, "u2", second.Auth.UserID)

	conns, err := f.connections.List(ctx)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestConnectionService_LoginRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)

	_, err := f.connections.Login(ctx, LoginRequest{Kind: "jellyfin", URL: srv.URL, Username: "alice", Password: "wrong"})
	var authErr *backend.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "authentication failed", err.Error())

	conns, err := f.connections.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, conns)
	assert.False(t, f.registry.Current().Connected())
}

func TestConnectionService_LoginValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.connections.Login(context.Background(), LoginRequest{Kind: "plex", URL: "http://x"})
	assert.ErrorIs(t, err, models.ErrInvalidBackendKind)

	_, err = f.connections.Login(context.Background(), LoginRequest{Kind: "emby", URL: ""})
	assert.ErrorIs(t, err, models.ErrURLRequired)
}

func TestConnectionService_CreateActivateWithKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendEmby)
	srv.SetAPIKey("static-key")

	conn := &models.Connection{Kind: models.BackendEmby, BaseURL: srv.URL, CredentialKey: "static-key", DisplayName: "Den"}
	require.NoError(t, f.connections.Create(ctx, conn))
	assert.False(t, f.registry.Current().Connected())

	state, err := f.connections.Activate(ctx, conn.ID)
	require.NoError(t, err)
	require.True(t, state.Authenticated())
	assert.Equal(t, "u1", state.Auth.UserID, "first administrator")
	assert.Equal(t, "Den", state.Connection.Label())

	ok, err := f.connections.Test(ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnectionService_Restore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)
	srv.SetAPIKey("k")

	state, err := f.connections.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, state.Connected())

	conn := &models.Connection{Kind: models.BackendJellyfin, BaseURL: srv.URL, CredentialKey: "k"}
	require.NoError(t, f.connections.Create(ctx, conn))
	require.NoError(t, f.connRepo.SetActive(ctx, conn.ID))

	restarted := newFixtureSharing(f)
	state, err = restarted.connections.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, state.Authenticated())
	assert.Equal(t, conn.ID, state.Connection.ID)
}

func TestConnectionService_TestUnreachable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)
	addr := srv.URL
	srv.Close()

	conn := &models.Connection{Kind: models.BackendJellyfin, BaseURL: addr}
	require.NoError(t, f.connections.Create(ctx, conn))

	ok, err := f.connections.Test(ctx, conn.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnectionService_DeleteActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)

	state := login(t, f, srv, "alice", "secret")
	require.NoError(t, f.connections.Delete(ctx, state.Connection.ID))

	assert.False(t, f.registry.Current().Connected())
	_, err := f.connections.GetByID(ctx, state.Connection.ID)
	assert.ErrorIs(t, err, models.ErrConnectionNotFound)
	assert.ErrorIs(t, f.connections.Delete(ctx, state.Connection.ID), models.ErrConnectionNotFound)
}

func TestConnectionService_Logout(t *testing.T) {
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)

	state := login(t, f, srv, "alice", "secret")
	f.connections.Logout(context.Background())

	cur := f.registry.Current()
	assert.True(t, cur.Connected())
	assert.False(t, cur.Authenticated())
	assert.Empty(t, state.Adapter.Token())
	assert.Equal(t, 1, srv.Calls("/Sessions/Logout"))
}

// newFixtureSharing simulates a process restart over the same database.
func newFixtureSharing(f *fixture) *fixture {
	restarted := *f
	restarted.registry = session.NewRegistry(nil)
	restarted.connections = NewConnectionService(f.connRepo, f.positions, f.connections.factory, restarted.registry)
	return &restarted
}
