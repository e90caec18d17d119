package session

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
)

type stubAdapter struct {
	backend.Adapter
	ended atomic.Int32
}

func (s *stubAdapter) EndSession(context.Context) { s.ended.Add(1) }

func conn(name string) *models.Connection {
	return &models.Connection{DisplayName: name, BaseURL: "http://" + name, Kind: models.BackendJellyfin}
}

func TestRegistry_StartsDisconnected(t *testing.T) {
	r := NewRegistry(nil)
	require.NotNil(t, r.Current())
	assert.False(t, r.Current().Connected())
	assert.False(t, r.Current().Authenticated())
}

func TestRegistry_ActivateDiscardsAuth(t *testing.T) {
	r := NewRegistry(nil)
	first := r.Activate(conn("one"), &stubAdapter{})

	authed, err := r.Authenticate(first, &AuthSession{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, authed.Authenticated())
	assert.True(t, r.Current().Authenticated())

	second := r.Activate(conn("two"), &stubAdapter{})
	assert.False(t, second.Authenticated())
	assert.Equal(t, "two", r.Current().Connection.DisplayName)

	// A snapshot resolved earlier is unaffected.
	assert.True(t, authed.Authenticated())
}

func TestRegistry_AuthenticateStale(t *testing.T) {
	r := NewRegistry(nil)
	first := r.Activate(conn("one"), &stubAdapter{})
	r.Activate(conn("two"), &stubAdapter{})

	_, err := r.Authenticate(first, &AuthSession{UserID: "u1"})
	assert.ErrorIs(t, err, ErrStaleConnection)
	assert.False(t, r.Current().Authenticated())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry(nil)
	adapter := &stubAdapter{}
	st := r.Activate(conn("one"), adapter)
	_, err := r.Authenticate(st, &AuthSession{UserID: "u1"})
	require.NoError(t, err)

	r.Clear(context.Background())
	assert.True(t, r.Current().Connected())
	assert.False(t, r.Current().Authenticated())
	assert.Equal(t, int32(1), adapter.ended.Load())

	r.Clear(context.Background())
	assert.Equal(t, int32(1), adapter.ended.Load())
}

func TestRegistry_Deactivate(t *testing.T) {
	r := NewRegistry(nil)
	r.Activate(conn("one"), &stubAdapter{})
	r.Deactivate()
	assert.False(t, r.Current().Connected())
}
