package providers

import (
	"errors"
	"fmt"
	"sync"

	"flowchart_gateway/internal/utils"
)

// ErrUnsupportedProvider is returned when no adapter is registered for a
// provider identifier.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Registry holds the adapters known to this process, keyed by provider id.
// It is populated once at startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	logger   *utils.Logger
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		logger:   utils.NewLogger("providers"),
	}
}

// Register adds an adapter under its provider id. Registering the same id
// twice replaces the earlier entry; last registration wins.
func (r *Registry) Register(adapter Adapter) {
	id := adapter.ProviderID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[id]; exists {
		r.logger.Warn("Replacing registered provider adapter", "provider", id)
	} else {
		r.logger.Info("Registered provider adapter", "provider", id)
	}
	r.adapters[id] = adapter
}

// Resolve looks up the adapter for a provider id.
func (r *Registry) Resolve(providerID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerID)
	}
	return adapter, nil
}

// ListSupported returns the registered provider ids, for diagnostics.
// Ordering is not stable.
func (r *Registry) ListSupported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}
