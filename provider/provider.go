// Package provider defines the contract between the autocompleter core
// and one content source. A Provider does not own any state about the
// items it describes; it is a stateless adapter the indexer and query
// engine call to pull id/terms/score/payload/facets out of whatever
// item value the caller hands it.
package provider

import "context"

// Item is an opaque handle to one indexable source record. The core
// never interprets it; it is passed back to a Provider's methods
// unchanged, and a concrete Provider type-asserts it to its own domain
// type. This mirrors the teacher's pattern of wrapping a single model
// instance per provider call, generalized to a stateless adapter so one
// Provider value can serve every item from its source.
type Item any

// Provider adapts one content source to the shape the indexer and query
// engine need. All methods must be safe for concurrent use.
type Provider interface {
	// Name is the provider's short, unique Redis key prefix.
	Name() string

	// ItemID returns a stable, provider-scoped identifier for item.
	ItemID(item Item) (string, error)

	// Terms returns the raw, human-readable strings item should match
	// against. Must be non-empty when IncludeItem(item) is true.
	Terms(item Item) ([]string, error)

	// Score returns item's relevance score. 0 means "rank last".
	Score(item Item) (float64, error)

	// Data returns the JSON-serializable payload returned on a match.
	Data(item Item) (map[string]any, error)

	// FacetKeys lists the facet keys this provider declares; every key
	// must also appear in Data's returned map when present.
	FacetKeys() []string

	// Facets returns item's facet key -> value mapping. May be empty.
	Facets(item Item) (map[string]string, error)

	// IncludeItem gates whether item should be indexed at all; false is
	// treated as a remove if the item was previously indexed.
	IncludeItem(item Item) bool

	// PhraseAliases returns the two-way phrase alias dictionary: each
	// key phrase maps to every value phrase and back.
	PhraseAliases() map[string][]string

	// OneWayPhraseAliases returns the one-way phrase alias dictionary:
	// each key phrase maps to every value phrase, with no reverse edge.
	OneWayPhraseAliases() map[string][]string

	// MaxExactMatchWords is the provider's declared maximum word count a
	// normalized variant may have to also be indexed as an exact-match
	// posting. It is used only where the registry resolves
	// MaxExactMatchWords to 0 (the global default); a non-zero registry
	// value takes precedence. A final value of 0 disables exact-match
	// indexing.
	MaxExactMatchWords() int

	// MinLetters is the provider's declared minimum query length before
	// it participates in a suggest() call. It is used only where the
	// registry resolves MinLetters to 0; the registry's global layer
	// always resolves to at least 1, so the declared value takes effect
	// only under an override that sets MinLetters to 0.
	MinLetters() int

	// MaxResults is the provider's declared result cap. It is used only
	// where the registry resolves MaxResults to 0; the registry's global
	// layer is always positive, so the declared value takes effect only
	// under an override that sets MaxResults to 0.
	MaxResults() int

	// Iterator enumerates every item currently in this provider's
	// source, for bulk store_all/remove_all.
	Iterator(ctx context.Context) (Iterator, error)
}

// Iterator enumerates the items of one Provider's source. Implementations
// typically wrap a database cursor, a file scan, or a static slice.
type Iterator interface {
	// Next returns the next item, or ok=false when exhausted.
	Next(ctx context.Context) (item Item, ok bool, err error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Base is an embeddable default implementation of the optional parts of
// Provider. Concrete providers embed Base[T] (T being their own item
// type) and override ItemID/Terms, which Base deliberately does not
// implement, matching the spec's "get_item_id and get_term are mandatory
// overrides" rule for dict-backed providers.
type Base[T any] struct{}

// Score defaults to 0 (sentinel for "rank last").
func (Base[T]) Score(Item) (float64, error) { return 0, nil }

// Data defaults to an empty payload.
func (Base[T]) Data(Item) (map[string]any, error) { return map[string]any{}, nil }

// FacetKeys defaults to no facets.
func (Base[T]) FacetKeys() []string { return nil }

// Facets defaults to no facet values.
func (Base[T]) Facets(Item) (map[string]string, error) { return nil, nil }

// IncludeItem defaults to true.
func (Base[T]) IncludeItem(Item) bool { return true }

// PhraseAliases defaults to no two-way aliases.
func (Base[T]) PhraseAliases() map[string][]string { return nil }

// OneWayPhraseAliases defaults to no one-way aliases.
func (Base[T]) OneWayPhraseAliases() map[string][]string { return nil }

// MaxExactMatchWords defaults to 0 (exact-match indexing disabled).
func (Base[T]) MaxExactMatchWords() int { return 0 }

// MinLetters defaults to 1.
func (Base[T]) MinLetters() int { return 1 }

// MaxResults defaults to 0 (defer to the registry-resolved setting).
func (Base[T]) MaxResults() int { return 0 }

// Typed narrows an Item back to T, for use inside ItemID/Terms overrides.
func Typed[T any](item Item) (T, bool) {
	t, ok := item.(T)
	return t, ok
}
