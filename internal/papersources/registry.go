package papersources

import (
	"sync"

	"github.com/helixir/enrichment-service/internal/domain"
)

// Registry holds the configured adapters keyed by source type.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.SourceType]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.SourceType]Adapter),
	}
}

// Register adds an adapter, replacing any adapter with the same source type.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.SourceType()] = adapter
}

// Get returns the adapter for sourceType, or nil if none is registered.
func (r *Registry) Get(sourceType domain.SourceType) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[sourceType]
}

// Enabled returns the enabled adapter for sourceType, or nil.
func (r *Registry) Enabled(sourceType domain.SourceType) Adapter {
	a := r.Get(sourceType)
	if a == nil || !a.IsEnabled() {
		return nil
	}
	return a
}

// Ordered returns the enabled adapters named in order, in that order.
// Unknown or disabled source types are left out.
func (r *Registry) Ordered(order []domain.SourceType) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]Adapter, 0, len(order))
	for _, st := range order {
		if a, ok := r.adapters[st]; ok && a.IsEnabled() {
			adapters = append(adapters, a)
		}
	}
	return adapters
}

// Count returns the number of registered adapters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
