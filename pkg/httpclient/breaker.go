package httpclient

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BreakerConfig holds the thresholds for a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failures that open the circuit.
	FailureThreshold int `json:"failureThreshold" yaml:"failure_threshold"`
	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration `json:"resetTimeout" yaml:"reset_timeout"`
	// HalfOpenMax is the number of probe requests allowed while half-open.
	HalfOpenMax int `json:"halfOpenMax" yaml:"half_open_max"`
}

// DefaultBreakerConfig returns the default thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMax:      1,
	}
}

func (c BreakerConfig) normalized() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = def.ResetTimeout
	}
	if c.HalfOpenMax <= 0 {
		c.HalfOpenMax = def.HalfOpenMax
	}
	return c
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	mu            sync.Mutex
	config        BreakerConfig
	state         CircuitState
	failures      int
	halfOpenCount int

	lastFailure    time.Time
	lastSuccess    time.Time
	stateEnteredAt time.Time

	totalRequests  int64
	totalSuccesses int64
	totalFailures  int64

	now func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config:         cfg.normalized(),
		state:          CircuitClosed,
		stateEnteredAt: time.Now(),
		now:            time.Now,
	}
}

// UpdateConfig replaces the thresholds; counters and state are kept.
func (cb *CircuitBreaker) UpdateConfig(cfg BreakerConfig) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.config = cfg.normalized()
}

// Allow reports whether a request may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
			cb.transition(CircuitHalfOpen)
			cb.halfOpenCount = 1
			return true
		}
		return false
	case CircuitHalfOpen:
		if cb.halfOpenCount < cb.config.HalfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.totalSuccesses++
	cb.lastSuccess = cb.now()
	cb.failures = 0
	if cb.state == CircuitHalfOpen {
		cb.transition(CircuitClosed)
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.totalFailures++
	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}
	cb.state = to
	cb.stateEnteredAt = cb.now()
	if to == CircuitClosed {
		cb.failures = 0
		cb.halfOpenCount = 0
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(CircuitClosed)
	cb.failures = 0
	cb.halfOpenCount = 0
}

// BreakerStats is a snapshot of a breaker for status endpoints.
type BreakerStats struct {
	Name                string        `json:"name"`
	State               CircuitState  `json:"state"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	TotalRequests       int64         `json:"totalRequests"`
	TotalSuccesses      int64         `json:"totalSuccesses"`
	TotalFailures       int64         `json:"totalFailures"`
	FailureRate         float64       `json:"failureRate"`
	LastFailure         *time.Time    `json:"lastFailure,omitempty"`
	LastSuccess         *time.Time    `json:"lastSuccess,omitempty"`
	StateEnteredAt      time.Time     `json:"stateEnteredAt"`
	NextHalfOpenAt      *time.Time    `json:"nextHalfOpenAt,omitempty"`
	Config              BreakerConfig `json:"config"`
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats(name string) BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := BreakerStats{
		Name:                name,
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		TotalRequests:       cb.totalRequests,
		TotalSuccesses:      cb.totalSuccesses,
		TotalFailures:       cb.totalFailures,
		StateEnteredAt:      cb.stateEnteredAt,
		Config:              cb.config,
	}
	if cb.totalRequests > 0 {
		s.FailureRate = float64(cb.totalFailures) / float64(cb.totalRequests) * 100
	}
	if !cb.lastFailure.IsZero() {
		t := cb.lastFailure
		s.LastFailure = &t
	}
	if !cb.lastSuccess.IsZero() {
		t := cb.lastSuccess
		s.LastSuccess = &t
	}
	if cb.state == CircuitOpen {
		t := cb.lastFailure.Add(cb.config.ResetTimeout)
		s.NextHalfOpenAt = &t
	}
	return s
}
