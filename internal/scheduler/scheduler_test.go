package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_AddTask(t *testing.T) {
	s := NewScheduler()

	require.NoError(t, s.AddTask("sweep", "*/5 * * * *", func(context.Context) error { return nil }))
	assert.Error(t, s.AddTask("sweep", "* * * * *", func(context.Context) error { return nil }))
	assert.Error(t, s.AddTask("bad", "not a cron", func(context.Context) error { return nil }))
	assert.Error(t, s.ValidateSchedule("61 * * * *"))
	assert.NoError(t, s.ValidateSchedule("@hourly"))
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	boom := errors.New("boom")

	require.NoError(t, s.AddTask("ok", "@every 1h", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.AddTask("fails", "@every 1h", func(context.Context) error { return boom }))

	require.NoError(t, s.RunNow(context.Background(), "ok"))
	assert.ErrorIs(t, s.RunNow(context.Background(), "fails"), boom)
	assert.Error(t, s.RunNow(context.Background(), "missing"))
	assert.Equal(t, int32(1), runs.Load())

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "fails", tasks[0].Name)
	assert.Equal(t, "boom", tasks[0].LastError)
	assert.Equal(t, int64(1), tasks[1].Runs)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.AddTask("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
	s.Stop()
}
