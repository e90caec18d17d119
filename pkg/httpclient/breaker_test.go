package httpclient

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker(t *testing.T) {
	t.Run("opens after threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
		for range 2 {
			cb.RecordFailure()
		}
		assert.Equal(t, CircuitClosed, cb.State())
		assert.True(t, cb.Allow())

		cb.RecordFailure()
		assert.Equal(t, CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("success resets consecutive failures", func(t *testing.T) {
		cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2})
		cb.RecordFailure()
		cb.RecordSuccess()
		cb.RecordFailure()
		assert.Equal(t, CircuitClosed, cb.State())
	})

	t.Run("half-open probe closes on success", func(t *testing.T) {
		now := time.Now()
		cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second, HalfOpenMax: 1})
		cb.now = func() time.Time { return now }

		cb.RecordFailure()
		assert.False(t, cb.Allow())

		now = now.Add(2 * time.Second)
		assert.True(t, cb.Allow())
		assert.Equal(t, CircuitHalfOpen, cb.State())
		assert.False(t, cb.Allow())

		cb.RecordSuccess()
		assert.Equal(t, CircuitClosed, cb.State())
	})

	t.Run("half-open probe failure reopens", func(t *testing.T) {
		now := time.Now()
		cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
		cb.now = func() time.Time { return now }

		cb.RecordFailure()
		now = now.Add(2 * time.Second)
		require.True(t, cb.Allow())
		cb.RecordFailure()
		assert.Equal(t, CircuitOpen, cb.State())
	})

	t.Run("reset closes", func(t *testing.T) {
		cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1})
		cb.RecordFailure()
		cb.Reset()
		assert.Equal(t, CircuitClosed, cb.State())
		assert.True(t, cb.Allow())
	})
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	cb.RecordSuccess()
	cb.RecordFailure()

	s := cb.Stats("media.local")
	assert.Equal(t, "media.local", s.Name)
	assert.Equal(t, int64(2), s.TotalRequests)
	assert.InDelta(t, 50.0, s.FailureRate, 0.01)
	require.NotNil(t, s.NextHalfOpenAt)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"open"`)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestCircuitBreakerManager(t *testing.T) {
	m := NewCircuitBreakerManager(BreakerConfig{FailureThreshold: 1})

	a := m.GetOrCreate("b.local")
	assert.Same(t, a, m.GetOrCreate("b.local"))
	m.GetOrCreate("a.local")
	assert.Equal(t, []string{"a.local", "b.local"}, m.Names())

	a.RecordFailure()
	assert.Equal(t, CircuitOpen, a.State())

	stats := m.AllStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a.local", stats[0].Name)
	assert.Equal(t, CircuitOpen, stats[1].State)

	assert.True(t, m.Reset("b.local"))
	assert.False(t, m.Reset("missing"))
	assert.Equal(t, CircuitClosed, a.State())

	m.UpdateConfig(BreakerConfig{FailureThreshold: 10})
	assert.Equal(t, 10, m.Config().FailureThreshold)
	assert.Equal(t, 2, m.ResetAll())

	assert.True(t, m.Remove("a.local"))
	assert.Nil(t, m.Get("a.local"))
}
