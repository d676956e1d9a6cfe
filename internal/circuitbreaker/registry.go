package circuitbreaker

import (
	"sync"

	"github.com/nuruhealth/nurugw/internal/observability"
)

// Registry holds one circuit breaker per upstream. Breakers are
// registered at startup and looked up on every proxied request.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   *Config
	logger   observability.Logger
}

// NewRegistry creates a registry with the given default configuration
// for breakers registered without an explicit config.
func NewRegistry(config *Config, logger observability.Logger) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
	}
}

// Register creates a circuit breaker for the named upstream using the
// registry default configuration. An existing breaker is returned
// unchanged.
func (r *Registry) Register(name string) *CircuitBreaker {
	return r.RegisterWithConfig(name, r.config)
}

// RegisterWithConfig creates a circuit breaker for the named upstream
// with a custom configuration. An existing breaker is returned unchanged.
func (r *Registry) RegisterWithConfig(name string, config *Config) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := NewCircuitBreaker(name, config, r.logger)
	r.breakers[name] = cb

	r.logger.Debug("registered circuit breaker",
		observability.String("name", name),
	)
	return cb
}

// Get returns the circuit breaker for the named upstream, or nil when
// none is registered.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

// List returns all registered circuit breakers.
func (r *Registry) List() []*CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	return breakers
}

// Names returns the names of all registered circuit breakers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// Stats returns per-breaker counter snapshots.
func (r *Registry) Stats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}

// ResetAll resets every registered circuit breaker to closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
	r.logger.Info("reset all circuit breakers")
}

// Count returns the number of registered circuit breakers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}
