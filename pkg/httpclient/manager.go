package httpclient

import (
	"log/slog"
	"sort"
	"sync"
)

// CircuitBreakerManager hands out one shared breaker per name. Media server
// adapters key breakers by endpoint so a failing server trips only its own.
type CircuitBreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   BreakerConfig
	logger   *slog.Logger
}

// NewCircuitBreakerManager creates a manager applying cfg to new breakers.
func NewCircuitBreakerManager(cfg BreakerConfig) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		config:   cfg.normalized(),
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for the manager.
func (m *CircuitBreakerManager) WithLogger(logger *slog.Logger) *CircuitBreakerManager {
	m.logger = logger
	return m
}

// GetOrCreate returns the breaker for name, creating it on first use.
func (m *CircuitBreakerManager) GetOrCreate(name string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, ok := m.breakers[name]; ok {
		return breaker
	}
	breaker := NewCircuitBreaker(m.config)
	m.breakers[name] = breaker

	m.logger.Debug("created circuit breaker",
		slog.String("name", name),
		slog.Int("failure_threshold", m.config.FailureThreshold),
		slog.Duration("reset_timeout", m.config.ResetTimeout),
	)
	return breaker
}

// Get returns the breaker for name, or nil.
func (m *CircuitBreakerManager) Get(name string) *CircuitBreaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breakers[name]
}

// Config returns the thresholds applied to breakers.
func (m *CircuitBreakerManager) Config() BreakerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// UpdateConfig applies cfg to every existing and future breaker.
func (m *CircuitBreakerManager) UpdateConfig(cfg BreakerConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = cfg.normalized()
	for _, breaker := range m.breakers {
		breaker.UpdateConfig(m.config)
	}
	m.logger.Info("circuit breaker configuration updated",
		slog.Int("active_breakers", len(m.breakers)),
	)
}

// Names returns the sorted breaker names.
func (m *CircuitBreakerManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllStats returns a snapshot of every breaker ordered by name.
func (m *CircuitBreakerManager) AllStats() []BreakerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]BreakerStats, 0, len(m.breakers))
	for name, breaker := range m.breakers {
		stats = append(stats, breaker.Stats(name))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Reset closes the named breaker. It reports false when no such breaker exists.
func (m *CircuitBreakerManager) Reset(name string) bool {
	breaker := m.Get(name)
	if breaker == nil {
		return false
	}
	breaker.Reset()
	m.logger.Info("circuit breaker reset", slog.String("name", name))
	return true
}

// ResetAll closes every breaker and returns how many there were.
func (m *CircuitBreakerManager) ResetAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, breaker := range m.breakers {
		breaker.Reset()
	}
	m.logger.Info("all circuit breakers reset", slog.Int("count", len(m.breakers)))
	return len(m.breakers)
}

// Remove forgets the named breaker.
func (m *CircuitBreakerManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.breakers[name]; !ok {
		return false
	}
	delete(m.breakers, name)
	return true
}
