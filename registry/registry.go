// Package registry holds autocompleter definitions, the providers
// registered to each, and the three-tier settings override chain
// (global -> provider -> autocompleter+provider) that parameterizes both
// the indexing and query pipelines.
package registry

import (
	"errors"
	"sync"

	"github.com/remiges-tech/autocompleter/provider"
)

// ErrMissingMaxResults is returned by New when global.MaxResults is not
// set; the spec treats this as a fatal configuration error.
var ErrMissingMaxResults = errors.New("registry: MaxResults must be configured globally")

// Registry maps autocompleter names to their ordered provider lists and
// resolves layered settings. A Registry is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	global Defaults

	providersByAC   map[string][]provider.Provider
	providerOnly    map[string]Override
	acProviderLayer map[acProviderKey]Override
}

type acProviderKey struct {
	autocompleter string
	provider      string
}

// New creates a Registry with the given global settings layer. It
// returns ErrMissingMaxResults if global.MaxResults is not configured.
func New(global Defaults) (*Registry, error) {
	if global.MaxResults <= 0 {
		return nil, ErrMissingMaxResults
	}
	return &Registry{
		global:          global.withNormalizeDefaults(),
		providersByAC:   make(map[string][]provider.Provider),
		providerOnly:    make(map[string]Override),
		acProviderLayer: make(map[acProviderKey]Override),
	}, nil
}

// Register adds p to the ordered provider list for the named
// autocompleter. Registering the same provider name twice for the same
// autocompleter is a no-op on the second call.
func (r *Registry) Register(autocompleter string, p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.providersByAC[autocompleter] {
		if existing.Name() == p.Name() {
			return
		}
	}
	r.providersByAC[autocompleter] = append(r.providersByAC[autocompleter], p)
}

// Unregister removes providerName from the named autocompleter's list.
func (r *Registry) Unregister(autocompleter, providerName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := r.providersByAC[autocompleter]
	for i, p := range providers {
		if p.Name() == providerName {
			r.providersByAC[autocompleter] = append(providers[:i], providers[i+1:]...)
			return
		}
	}
}

// Providers returns the ordered provider list for an autocompleter. A
// name with no registered providers returns an empty (nil) slice, per
// spec's "empty provider list => empty result".
func (r *Registry) Providers(autocompleter string) []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]provider.Provider(nil), r.providersByAC[autocompleter]...)
}

// SetProviderSettings installs the provider-level override layer for
// providerName, used by every autocompleter it's registered under unless
// overridden again at the autocompleter+provider layer.
func (r *Registry) SetProviderSettings(providerName string, o Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providerOnly[providerName] = o
}

// SetAutocompleterProviderSettings installs the highest-priority override
// layer, specific to one (autocompleter, provider) pair.
func (r *Registry) SetAutocompleterProviderSettings(autocompleter, providerName string, o Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acProviderLayer[acProviderKey{autocompleter, providerName}] = o
}

// Resolve computes the fully-layered settings for (autocompleter,
// providerName): autocompleter+provider overrides provider overrides
// overrides the global defaults.
func (r *Registry) Resolve(autocompleter, providerName string) Resolved {
	r.mu.RLock()
	defer r.mu.RUnlock()

	layers := make([]Override, 0, 2)
	if o, ok := r.providerOnly[providerName]; ok {
		layers = append(layers, o)
	}
	if o, ok := r.acProviderLayer[acProviderKey{autocompleter, providerName}]; ok {
		layers = append(layers, o)
	}
	return resolve(r.global, layers...)
}

// GlobalDefaults returns the registry's global settings layer.
func (r *Registry) GlobalDefaults() Defaults {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.global
}
