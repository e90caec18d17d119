package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/repository"
	"github.com/jmylchreest/mediabridge/internal/testutil"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRecords(t *testing.T) (*Records, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewRecords(repository.NewActiveSessionRepository(testutil.NewTestDB(t)), 30*time.Minute, nil)
	s.now = c.now
	return s, c
}

func TestRecords_LoginLifecycle(t *testing.T) {
	s, c := newRecords(t)
	ctx := context.Background()

	laptop, err := s.Open(ctx, OpenParams{UserID: "u1", Username: "alice", DeviceDescriptor: "laptop"})
	require.NoError(t, err)
	assert.NotEmpty(t, laptop.SessionID)

	recs, err := s.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	c.t = c.t.Add(time.Minute)
	phone, err := s.Open(ctx, OpenParams{UserID: "u1", Username: "alice", DeviceDescriptor: "phone"})
	require.NoError(t, err)

	recs, err = s.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, phone.SessionID, recs[0].SessionID)

	require.NoError(t, s.Close(ctx, laptop.SessionID))
	recs, err = s.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "phone", recs[0].DeviceDescriptor)
}

func TestRecords_Sweep(t *testing.T) {
	s, c := newRecords(t)
	ctx := context.Background()

	idle, err := s.Open(ctx, OpenParams{UserID: "u1", DeviceDescriptor: "idle"})
	require.NoError(t, err)
	c.t = c.t.Add(20 * time.Minute)
	busy, err := s.Open(ctx, OpenParams{UserID: "u1", DeviceDescriptor: "busy"})
	require.NoError(t, err)

	c.t = c.t.Add(15 * time.Minute)
	require.NoError(t, s.Touch(ctx, busy.SessionID))

	removed, err := s.Sweep(ctx, c.t)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	gone, err := s.repo.GetBySessionID(ctx, idle.SessionID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := s.repo.GetBySessionID(ctx, busy.SessionID)
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestRecords_TouchNeverMovesBackwards(t *testing.T) {
	s, c := newRecords(t)
	ctx := context.Background()

	rec, err := s.Open(ctx, OpenParams{UserID: "u1"})
	require.NoError(t, err)
	opened := rec.LastActivityAt

	c.t = c.t.Add(-time.Hour)
	require.NoError(t, s.Touch(ctx, rec.SessionID))

	got, err := s.repo.GetBySessionID(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.True(t, got.LastActivityAt.Equal(opened))
}

func TestRecords_SweepWithZonedClock(t *testing.T) {
	s, c := newRecords(t)
	ctx := context.Background()

	rec, err := s.Open(ctx, OpenParams{UserID: "u1", DeviceDescriptor: "tv"})
	require.NoError(t, err)

	for _, zone := range []*time.Location{
		time.FixedZone("CET", 1*60*60),
		time.FixedZone("AEST", 10*60*60),
		time.FixedZone("PST", -8*60*60),
	} {
		removed, err := s.Sweep(ctx, c.t.Add(time.Second).In(zone))
		require.NoError(t, err)
		assert.Zero(t, removed, zone.String())
	}

	kept, err := s.repo.GetBySessionID(ctx, rec.SessionID)
	require.NoError(t, err)
	require.NotNil(t, kept)

	removed, err := s.Sweep(ctx, c.t.Add(31*time.Minute).In(time.FixedZone("CET", 1*60*60)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestTruncate_RuneBoundary(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcd", 2))
	// "é" is two bytes; cutting inside it drops the whole rune.
	assert.Equal(t, "caf", truncate("café", 4))
	assert.Equal(t, "café", truncate("café", 5))
	assert.Equal(t, "", truncate("日本", 2))
}

func TestDeviceDescriptor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "Firefox")
	assert.Equal(t, "Firefox", DeviceDescriptor(r))

	r.Header.Set("X-Device-Name", "Living Room")
	assert.Equal(t, "Living Room (Firefox)", DeviceDescriptor(r))

	assert.Equal(t, "unknown device", DeviceDescriptor(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestMiddleware_ThreadsState(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Activate(conn("one"), &stubAdapter{})

	var seen *State
	var sid string
	h := Middleware(reg, "sid")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		sid = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "abc"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.True(t, seen.Connected())
	assert.Equal(t, "abc", sid)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderSessionID, "hdr")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "hdr", sid)
}
