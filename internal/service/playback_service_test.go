package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/session"
)

func TestPlaybackService_ReportLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)
	state := login(t, f, srv, "alice", "secret")

	rep, err := f.playback.Report(ctx, state, models.PlaybackStarted, "m1", 0)
	require.NoError(t, err)
	assert.True(t, rep.Acknowledged)

	_, err = f.playback.Report(ctx, state, models.PlaybackProgress, "m1", 50_000_000)
	require.NoError(t, err)

	pos, err := f.playback.Position(ctx, state, "m1")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(50_000_000), pos.PositionTicks)
	assert.Equal(t, models.PlaybackProgress, pos.Event)

	reports := srv.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "/Sessions/Playing", reports[0].Path)
	assert.Equal(t, "/Sessions/Playing/Progress", reports[1].Path)
}

func TestPlaybackService_DoubleStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendEmby)
	state := login(t, f, srv, "alice", "secret")

	for i := 0; i < 2; i++ {
		rep, err := f.playback.Report(ctx, state, models.PlaybackStopped, "m1", 120_000_000)
		require.NoError(t, err)
		assert.Equal(t, models.PlaybackStopped, rep.Event)
	}

	recent, err := f.playback.Recent(ctx, state, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(120_000_000), recent[0].PositionTicks)
}

func TestPlaybackService_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)
	state := login(t, f, srv, "alice", "secret")

	_, err := f.playback.Report(ctx, state, models.PlaybackProgress, "m1", 900)
	require.NoError(t, err)
	_, err = f.playback.Report(ctx, state, models.PlaybackProgress, "m1", 300)
	require.NoError(t, err)

	pos, err := f.playback.Position(ctx, state, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), pos.PositionTicks)
}

func TestPlaybackService_BackendDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := newServer(t, models.BackendJellyfin)
	state := login(t, f, srv, "alice", "secret")
	srv.Close()

	rep, err := f.playback.Report(ctx, state, models.PlaybackStopped, "m1", 10)
	require.NoError(t, err)
	assert.False(t, rep.Acknowledged)

	pos, err := f.playback.Position(ctx, state, "m1")
	require.NoError(t, err)
	assert.NotNil(t, pos)
}

func TestPlaybackService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.playback.Report(ctx, &session.State{}, models.PlaybackStarted, "m1", 0)
	assert.ErrorIs(t, err, backend.ErrNotAuthenticated)

	srv := newServer(t, models.BackendJellyfin)
	state := login(t, f, srv, "alice", "secret")

	_, err = f.playback.Report(ctx, state, models.PlaybackStarted, " ", 0)
	assert.ErrorIs(t, err, models.ErrItemIDRequired)

	_, err = f.playback.Report(ctx, state, models.PlaybackEvent("paused"), "m1", 0)
	var verr models.ErrValidation
	assert.ErrorAs(t, err, &verr)
}
