package gateway

import (
	"sync"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// Registry resolves the adapter of a gateway
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.GatewayType]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[types.GatewayType]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its gateway
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Gateway()] = a
}

func (r *Registry) Get(gateway types.GatewayType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[gateway]
	if !ok {
		return nil, ierr.NewErrorf("no adapter registered for gateway %s", gateway).
			WithHintf("Payment gateway %s is not enabled", gateway).
			WithReportableDetails(map[string]any{
				"gateway":   gateway,
				"available": lo.Keys(r.adapters),
			}).
			Mark(ierr.ErrNotFound)
	}
	return a, nil
}

// Gateways lists the registered gateways
func (r *Registry) Gateways() []types.GatewayType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.adapters)
}
