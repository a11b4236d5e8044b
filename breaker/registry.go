package breaker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry hands out one shared breaker per dependency name. It is the
// injectable replacement for a package-level breaker map: every component
// that needs breaker protection receives a *Registry explicitly.
type Registry struct {
	defaults Config
	now      func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry(defaults Config) (*Registry, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		defaults: defaults,
		breakers: make(map[string]*Breaker),
	}, nil
}

// WithClock replaces the time source handed to newly created breakers.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	if r == nil || now == nil {
		return r
	}
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
	return r
}

// Get returns the shared breaker for name, creating it with the registry
// defaults on first use.
func (r *Registry) Get(name string) (*Breaker, error) {
	if r == nil {
		return nil, fmt.Errorf("breaker: registry is not configured")
	}
	return r.GetWithConfig(name, r.defaults)
}

// GetWithConfig returns the shared breaker for name, creating it with
// config on first use. An existing breaker keeps its original config.
func (r *Registry) GetWithConfig(name string, config Config) (*Breaker, error) {
	if r == nil {
		return nil, fmt.Errorf("breaker: registry is not configured")
	}
	key := strings.TrimSpace(name)
	if key == "" {
		return nil, fmt.Errorf("breaker: name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.breakers[key]; ok {
		return existing, nil
	}
	created, err := New(key, config)
	if err != nil {
		return nil, err
	}
	if r.now != nil {
		created.WithClock(r.now)
	}
	r.breakers[key] = created
	return created, nil
}

// Stats snapshots every registered breaker, sorted by name.
func (r *Registry) Stats() []Stats {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make([]Stats, 0, len(breakers))
	for _, b := range breakers {
		out = append(out, b.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset forces every registered breaker closed.
func (r *Registry) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	for _, b := range breakers {
		b.Reset()
	}
}
