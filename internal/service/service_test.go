package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/backend/adapters"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/repository"
	"github.com/jmylchreest/mediabridge/internal/session"
	"github.com/jmylchreest/mediabridge/internal/testutil"
	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

type fixture struct {
	connRepo    repository.ConnectionRepository
	positions   repository.PlaybackPositionRepository
	registry    *session.Registry
	records     *session.Records
	connections *ConnectionService
	playback    *PlaybackService
	auth        *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)

	f := &fixture{
		connRepo:  repository.NewConnectionRepository(db),
		positions: repository.NewPlaybackPositionRepository(db),
		registry:  session.NewRegistry(nil),
	}
	f.records = session.NewRecords(repository.NewActiveSessionRepository(db), 0, nil)

	factory := adapters.NewDefaultFactory(backend.Deps{
		Identity: mediabrowser.Identity{Client: "mediabridge", Device: "test", DeviceID: "dev-test", Version: "test"},
	})
	f.connections = NewConnectionService(f.connRepo, f.positions, factory, f.registry)
	f.playback = NewPlaybackService(f.positions)
	f.auth = NewAuthService(f.connections, f.records)
	return f
}

func newServer(t *testing.T, kind models.BackendKind) *testutil.FakeServer {
	t.Helper()
	srv := testutil.NewFakeServer(t, kind)
	srv.AddUser("u1", "alice", "secret", true)
	srv.AddUser("u2", "bob", "hunter2", false)
	return srv
}

func login(t *testing.T, f *fixture, srv *testutil.FakeServer, user, pass string) *session.State {
	t.Helper()
	state, err := f.connections.Login(context.Background(), LoginRequest{
		Kind:     string(srv.Kind),
		URL:      srv.URL,
		Username: user,
		Password: pass,
	})
	require.NoError(t, err)
	return state
}
