package strategy

import (
	"sort"
	"sync"

	"github.com/quantatrix/backlab/pkg/errors"
)

// Registry maps strategy component names to factories. It is populated by
// explicit Register calls at startup; there is no import-time side effect and
// no package-level mutable state.
type Registry struct {
	scanners map[string]ScannerFactory
	exits    map[string]ExitPolicyFactory
	sizers   map[string]SizerFactory
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		scanners: make(map[string]ScannerFactory),
		exits:    make(map[string]ExitPolicyFactory),
		sizers:   make(map[string]SizerFactory),
		mu:       sync.RWMutex{},
	}
}

// RegisterScanner adds a scanner factory under the given name.
func (r *Registry) RegisterScanner(name string, factory ScannerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scanners[name]; exists {
		return errors.Newf(errors.ErrCodeStrategyDuplicated, "scanner %q already registered", name)
	}

	r.scanners[name] = factory

	return nil
}

// RegisterExitPolicy adds an exit policy factory under the given name.
func (r *Registry) RegisterExitPolicy(name string, factory ExitPolicyFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.exits[name]; exists {
		return errors.Newf(errors.ErrCodeStrategyDuplicated, "exit policy %q already registered", name)
	}

	r.exits[name] = factory

	return nil
}

// RegisterSizer adds a sizer factory under the given name.
func (r *Registry) RegisterSizer(name string, factory SizerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sizers[name]; exists {
		return errors.Newf(errors.ErrCodeStrategyDuplicated, "sizer %q already registered", name)
	}

	r.sizers[name] = factory

	return nil
}

// CreateScanner builds the named scanner.
func (r *Registry) CreateScanner(name string, env Env, params Params) (Scanner, error) {
	r.mu.RLock()
	factory, exists := r.scanners[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "scanner %q not registered", name)
	}

	return factory(env, params)
}

// CreateExitPolicy builds the named exit policy.
func (r *Registry) CreateExitPolicy(name string, env Env, params Params) (ExitPolicy, error) {
	r.mu.RLock()
	factory, exists := r.exits[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "exit policy %q not registered", name)
	}

	return factory(env, params)
}

// CreateSizer builds the named sizer.
func (r *Registry) CreateSizer(name string, env Env, params Params) (PositionSizer, error) {
	r.mu.RLock()
	factory, exists := r.sizers[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "sizer %q not registered", name)
	}

	return factory(env, params)
}

// ListScanners returns the registered scanner names in sorted order.
func (r *Registry) ListScanners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.scanners)
}

// ListExitPolicies returns the registered exit policy names in sorted order.
func (r *Registry) ListExitPolicies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.exits)
}

// ListSizers returns the registered sizer names in sorted order.
func (r *Registry) ListSizers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.sizers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
