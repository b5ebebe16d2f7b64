package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// #region registry
// Registry holds one independent engine per symbol. Engines share nothing but
// the template config and options they were created from.
type Registry struct {
	mu      sync.RWMutex
	config  Config
	opts    []Option
	engines map[string]*Engine
	onNew   []func(*Engine)
}

// NewRegistry validates cfg and returns an empty registry.
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		config:  cfg,
		opts:    opts,
		engines: make(map[string]*Engine),
	}, nil
}

// OnCreate registers a hook run once for every engine the registry creates,
// e.g. to attach event subscribers. Hooks run before the engine is visible.
func (r *Registry) OnCreate(fn func(*Engine)) {
	r.mu.Lock()
	r.onNew = append(r.onNew, fn)
	r.mu.Unlock()
}

// Get returns the engine for symbol, creating it on first use.
func (r *Registry) Get(symbol string) (*Engine, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}

	r.mu.RLock()
	e, ok := r.engines[symbol]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[symbol]; ok {
		return e, nil
	}
	opts := append(append([]Option(nil), r.opts...), WithSymbol(symbol))
	e, err := New(r.config, opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine %s: %w", symbol, err)
	}
	for _, fn := range r.onNew {
		fn(e)
	}
	r.engines[symbol] = e
	return e, nil
}

// Lookup returns the engine for symbol without creating it.
func (r *Registry) Lookup(symbol string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[normalizeSymbol(symbol)]
	return e, ok
}

// Symbols lists known symbols in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.engines))
	for s := range r.engines {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UpdateConfig validates the patched template and applies it to every engine.
// Nothing changes if the patch is invalid.
func (r *Registry) UpdateConfig(p ConfigPatch) (Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := p.Apply(r.config)
	if err := next.Validate(); err != nil {
		return r.config, err
	}
	for symbol, e := range r.engines {
		if _, err := e.UpdateConfig(p); err != nil {
			return r.config, fmt.Errorf("update %s: %w", symbol, err)
		}
	}
	r.config = next
	return next, nil
}

// Config returns the template config used for new engines.
func (r *Registry) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// #endregion registry

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
