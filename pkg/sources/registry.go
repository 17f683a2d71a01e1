package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
)

// Registry maps source types to factories. It is owned by whoever wires the
// application together; there is no package-level registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]SourceFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]SourceFactory)}
}

// Register adds a source factory for a type
func (r *Registry) Register(sourceType string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sourceType] = factory
}

// Create creates a new source instance. The factory receives a copy of config
// with "name" and "logger" set.
func (r *Registry) Create(sourceType, name string, config map[string]interface{}, logger *logging.Logger) (Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[sourceType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceType, sourceType)
	}

	cfg := make(map[string]interface{}, len(config)+2)
	for k, v := range config {
		cfg[k] = v
	}
	cfg["name"] = name
	cfg["logger"] = logger

	return factory(cfg)
}

// List returns all registered source types, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
