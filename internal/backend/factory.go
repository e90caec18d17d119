package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jmylchreest/mediabridge/internal/models"
)

// Constructor builds an adapter for a stored connection.
type Constructor func(conn *models.Connection, deps Deps) (Adapter, error)

// Factory creates adapters by backend kind.
type Factory struct {
	mu           sync.RWMutex
	constructors map[models.BackendKind]Constructor
	deps         Deps
}

// NewFactory creates an empty factory. Concrete kinds are registered by the
// adapters package.
func NewFactory(deps Deps) *Factory {
	return &Factory{
		constructors: make(map[models.BackendKind]Constructor),
		deps:         deps,
	}
}

// Register adds or replaces the constructor for kind.
func (f *Factory) Register(kind models.BackendKind, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[kind] = ctor
}

// Create builds an adapter for conn.
func (f *Factory) Create(conn *models.Connection) (Adapter, error) {
	if conn == nil {
		return nil, ErrNoActiveConnection
	}
	f.mu.RLock()
	ctor, ok := f.constructors[conn.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackendKind, conn.Kind)
	}
	return ctor(conn, f.deps)
}

// SupportedKinds returns the registered kinds in name order.
func (f *Factory) SupportedKinds() []models.BackendKind {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]models.BackendKind, 0, len(f.constructors))
	for k := range f.constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
