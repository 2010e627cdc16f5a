package provider

import "context"

// DictEntry is one static, in-memory indexable record for a DictProvider.
type DictEntry struct {
	ID     string
	Term   string
	Score  float64
	Data   map[string]any
	Facets map[string]string
}

// DictProvider is a Provider backed by a fixed, in-memory list of entries
// rather than a model manager. It satisfies spec's "dict-backed provider"
// shape directly, since a static dictionary has no queryset to iterate.
type DictProvider struct {
	Base[DictEntry]

	name                string
	entries             []DictEntry
	facetKeys           []string
	phraseAliases       map[string][]string
	oneWayPhraseAliases map[string][]string
	maxExactMatchWords  int
	minLetters          int
	maxResults          int
}

// NewDictProvider creates a DictProvider named name over the given
// entries. Use the With* methods to configure facets, aliases, and
// per-provider overrides before registering it.
func NewDictProvider(name string, entries []DictEntry) *DictProvider {
	return &DictProvider{
		name:       name,
		entries:    entries,
		minLetters: 1,
	}
}

// WithFacetKeys declares the facet keys this provider exposes.
func (p *DictProvider) WithFacetKeys(keys ...string) *DictProvider {
	p.facetKeys = keys
	return p
}

// WithPhraseAliases sets the two-way phrase alias dictionary.
func (p *DictProvider) WithPhraseAliases(aliases map[string][]string) *DictProvider {
	p.phraseAliases = aliases
	return p
}

// WithOneWayPhraseAliases sets the one-way phrase alias dictionary.
func (p *DictProvider) WithOneWayPhraseAliases(aliases map[string][]string) *DictProvider {
	p.oneWayPhraseAliases = aliases
	return p
}

// WithMaxExactMatchWords sets the declared exact-match word-count cap
// (see Provider.MaxExactMatchWords for when it applies).
func (p *DictProvider) WithMaxExactMatchWords(n int) *DictProvider {
	p.maxExactMatchWords = n
	return p
}

// WithMinLetters sets the declared minimum query length (see
// Provider.MinLetters for when it applies).
func (p *DictProvider) WithMinLetters(n int) *DictProvider {
	p.minLetters = n
	return p
}

// WithMaxResults sets the declared result cap (see Provider.MaxResults
// for when it applies).
func (p *DictProvider) WithMaxResults(n int) *DictProvider {
	p.maxResults = n
	return p
}

// Entries returns the provider's static entry list.
func (p *DictProvider) Entries() []DictEntry {
	return p.entries
}

func (p *DictProvider) Name() string { return p.name }

func (p *DictProvider) ItemID(item Item) (string, error) {
	entry, _ := Typed[DictEntry](item)
	return entry.ID, nil
}

func (p *DictProvider) Terms(item Item) ([]string, error) {
	entry, _ := Typed[DictEntry](item)
	return []string{entry.Term}, nil
}

func (p *DictProvider) Score(item Item) (float64, error) {
	entry, _ := Typed[DictEntry](item)
	return entry.Score, nil
}

func (p *DictProvider) Data(item Item) (map[string]any, error) {
	entry, _ := Typed[DictEntry](item)
	if entry.Data == nil {
		return map[string]any{}, nil
	}
	return entry.Data, nil
}

func (p *DictProvider) FacetKeys() []string { return p.facetKeys }

func (p *DictProvider) Facets(item Item) (map[string]string, error) {
	entry, _ := Typed[DictEntry](item)
	return entry.Facets, nil
}

func (p *DictProvider) PhraseAliases() map[string][]string { return p.phraseAliases }

func (p *DictProvider) OneWayPhraseAliases() map[string][]string { return p.oneWayPhraseAliases }

func (p *DictProvider) MaxExactMatchWords() int { return p.maxExactMatchWords }

func (p *DictProvider) MinLetters() int { return p.minLetters }

func (p *DictProvider) MaxResults() int { return p.maxResults }

func (p *DictProvider) Iterator(context.Context) (Iterator, error) {
	return &dictIterator{entries: p.entries}, nil
}

type dictIterator struct {
	entries []DictEntry
	pos     int
}

func (it *dictIterator) Next(context.Context) (Item, bool, error) {
	if it.pos >= len(it.entries) {
		return nil, false, nil
	}
	entry := it.entries[it.pos]
	it.pos++
	return entry, true, nil
}

func (it *dictIterator) Close() error { return nil }
