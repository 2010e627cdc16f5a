// Package keyschema builds the deterministic Redis key names used by the
// autocompleter core. All keys live under a configurable root namespace
// (e.g. "djac" in production, a distinct "djac.test" root under test
// mode so bulk teardown can scan that root safely).
package keyschema

import (
	"fmt"

	"github.com/google/uuid"
)

// Schema builds keys under a single root namespace.
type Schema struct {
	root string
}

// New returns a Schema rooted at root (e.g. "djac").
func New(root string) Schema {
	return Schema{root: root}
}

// Root returns the configured root namespace.
func (s Schema) Root() string {
	return s.root
}

// Payload is the per-provider id -> payload hash key.
func (s Schema) Payload(provider string) string {
	return fmt.Sprintf("%s.%s", s.root, provider)
}

// Terms is the per-provider id -> normalized-terms hash key.
func (s Schema) Terms(provider string) string {
	return fmt.Sprintf("%s.%s.tm", s.root, provider)
}

// Facets is the per-provider id -> facet-list hash key.
func (s Schema) Facets(provider string) string {
	return fmt.Sprintf("%s.%s.fm", s.root, provider)
}

// Prefix is the per-(provider, prefix) ordered-set key.
func (s Schema) Prefix(provider, prefix string) string {
	return fmt.Sprintf("%s.%s.p.%s", s.root, provider, prefix)
}

// PrefixSet is the per-provider prefix bookkeeping set key.
func (s Schema) PrefixSet(provider string) string {
	return fmt.Sprintf("%s.%s.ps", s.root, provider)
}

// Exact is the per-(provider, exact-term) ordered-set key.
func (s Schema) Exact(provider, term string) string {
	return fmt.Sprintf("%s.%s.e.%s", s.root, provider, term)
}

// ExactSet is the per-provider exact bookkeeping set key.
func (s Schema) ExactSet(provider string) string {
	return fmt.Sprintf("%s.%s.es", s.root, provider)
}

// FacetSet is the per-(provider, facet-key, facet-value) ordered-set key.
func (s Schema) FacetSet(provider, key, value string) string {
	return fmt.Sprintf("%s.%s.f.%s.%s", s.root, provider, key, value)
}

// Cache is a query-cache entry key, keyed by normalized query + facet hash.
func (s Schema) Cache(autocompleter, normalizedQuery, facetHash string) string {
	return fmt.Sprintf("%s.%s.c.%s.%s", s.root, autocompleter, normalizedQuery, facetHash)
}

// CachePattern is the glob pattern matching every cache entry for an
// autocompleter, used to purge the cache namespace on bulk writes.
func (s Schema) CachePattern(autocompleter string) string {
	return fmt.Sprintf("%s.%s.c.*", s.root, autocompleter)
}

// ExactCache is an exact_suggest cache entry key, keyed by the raw query.
func (s Schema) ExactCache(autocompleter, query string) string {
	return fmt.Sprintf("%s.%s.ce.%s", s.root, autocompleter, query)
}

// ExactCachePattern is the glob pattern matching every exact-cache entry
// for an autocompleter.
func (s Schema) ExactCachePattern(autocompleter string) string {
	return fmt.Sprintf("%s.%s.ce.*", s.root, autocompleter)
}

// NewEphemeralKey returns a fresh, collision-free intermediate key for one
// query pipeline, optionally tagged (e.g. per provider or per variant) so
// multiple ephemeral sets from the same request stay distinguishable in
// logs. Concurrent suggest/exact_suggest calls never collide because each
// gets its own UUID.
func (s Schema) NewEphemeralKey(tag string) string {
	id := uuid.New().String()
	if tag == "" {
		return fmt.Sprintf("%s.results.%s", s.root, id)
	}
	return fmt.Sprintf("%s.results.%s.%s", s.root, id, tag)
}
