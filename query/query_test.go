package query

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/remiges-tech/autocompleter/facet"
	"github.com/remiges-tech/autocompleter/index"
	"github.com/remiges-tech/autocompleter/keyschema"
	"github.com/remiges-tech/autocompleter/provider"
	"github.com/remiges-tech/autocompleter/registry"
)

// harness wires a full registry+index+query pipeline against an
// in-process Redis, mirroring how a caller assembles the three packages
// around a shared schema and client.
type harness struct {
	t      *testing.T
	ctx    context.Context
	rdb    *redis.Client
	schema keyschema.Schema
	reg    *registry.Registry
	ix     *index.Indexer
	qe     *Engine
}

func newHarness(t *testing.T, global registry.Defaults) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	schema := keyschema.New("djac.test")
	reg, err := registry.New(global)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{
		t:      t,
		ctx:    context.Background(),
		rdb:    rdb,
		schema: schema,
		reg:    reg,
		ix:     index.New(rdb, schema, nil),
		qe:     New(rdb, schema, reg, nil),
	}
}

func (h *harness) storeAll(acName string, p provider.Provider) {
	h.t.Helper()
	h.reg.Register(acName, p)
	resolved := h.reg.Resolve(acName, p.Name()).WithProviderFallback(p)
	settings := index.Settings{Normalize: resolved.NormalizeConfig(), MaxExactMatchWords: resolved.MaxExactMatchWords}
	if err := h.ix.StoreAll(h.ctx, p, settings, true); err != nil {
		h.t.Fatalf("store_all %q: %v", p.Name(), err)
	}
}

func entryIDs(results []map[string]any) []string {
	var ids []string
	for _, r := range results {
		if id, ok := r["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestSuggestBasicPrefixMatch(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("stocks", []provider.DictEntry{
		{ID: "AAPL", Term: "Apple Inc", Score: 10, Data: map[string]any{"id": "AAPL"}},
		{ID: "MSFT", Term: "Microsoft Corp", Score: 8, Data: map[string]any{"id": "MSFT"}},
	}).WithMaxExactMatchWords(3)
	h.storeAll("finance", p)

	result, err := h.qe.Suggest(h.ctx, "finance", "app", nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := entryIDs(result.ByProvider["stocks"])
	if !contains(ids, "AAPL") {
		t.Fatalf("suggest(app) = %v, want to contain AAPL", ids)
	}
}

func TestSuggestAccentFold(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("brands", []provider.DictEntry{
		{ID: "EL", Term: "Estée Lauder", Score: 10, Data: map[string]any{"id": "EL", "search_name": "EL"}},
	}).WithMaxExactMatchWords(3)
	h.storeAll("brands", p)

	for _, q := range []string{"estee lauder", "estée lauder"} {
		result, err := h.qe.Suggest(h.ctx, "brands", q, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids := entryIDs(result.ByProvider["brands"])
		if !contains(ids, "EL") {
			t.Fatalf("suggest(%q) = %v, want to contain EL", q, ids)
		}
	}
}

func TestSuggestTwoWayAlias(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("indicators", []provider.DictEntry{
		{ID: "CPI", Term: "US Consumer Price Index", Score: 10, Data: map[string]any{"id": "CPI"}},
	}).WithMaxExactMatchWords(5).
		WithPhraseAliases(map[string][]string{"United States": {"US", "USA", "America"}})
	h.storeAll("indicators", p)

	for _, q := range []string{
		"us consumer price index",
		"united states consumer price index",
		"usa consumer price index",
		"america consumer price index",
	} {
		result, err := h.qe.Suggest(h.ctx, "indicators", q, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids := entryIDs(result.ByProvider["indicators"])
		if !contains(ids, "CPI") {
			t.Fatalf("suggest(%q) = %v, want to contain CPI", q, ids)
		}
	}
}

func TestSuggestNoDoubleAlias(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("geo", []provider.DictEntry{
		{ID: "CA_UNEMP", Term: "California Unemployment", Score: 10, Data: map[string]any{"id": "CA_UNEMP"}},
		{ID: "CAN_UNEMP", Term: "Canada Unemployment", Score: 10, Data: map[string]any{"id": "CAN_UNEMP"}},
	}).WithMaxExactMatchWords(5).
		WithPhraseAliases(map[string][]string{"California": {"CA"}, "Canada": {"CA"}})
	h.storeAll("geo", p)

	result, err := h.qe.Suggest(h.ctx, "geo", "california unemployment", nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := entryIDs(result.ByProvider["geo"])
	if !contains(ids, "CA_UNEMP") {
		t.Fatalf("suggest(california unemployment) = %v, want CA_UNEMP", ids)
	}
	if contains(ids, "CAN_UNEMP") {
		t.Fatalf("suggest(california unemployment) = %v, Canada item leaked in", ids)
	}
}

func TestSuggestJoinCharVariants(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("securities", []provider.DictEntry{
		{ID: "MBS", Term: "Mortgage-Backed Securities", Score: 10, Data: map[string]any{"id": "MBS"}},
	}).WithMaxExactMatchWords(5)
	h.storeAll("securities", p)

	for _, q := range []string{"mortgage-backed", "mortgage backed", "mortgagebacked"} {
		result, err := h.qe.Suggest(h.ctx, "securities", q, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids := entryIDs(result.ByProvider["securities"])
		if !contains(ids, "MBS") {
			t.Fatalf("suggest(%q) = %v, want to contain MBS", q, ids)
		}
	}
}

func TestSuggestFacetAnd(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("stocks", []provider.DictEntry{
		{
			ID: "CHTR", Term: "Charter Communications", Score: 10,
			Data:   map[string]any{"id": "CHTR"},
			Facets: map[string]string{"sector": "Communication Services", "industry": "Telecom Services"},
		},
		{
			ID: "CHRW", Term: "Chicago Rail", Score: 9,
			Data:   map[string]any{"id": "CHRW"},
			Facets: map[string]string{"sector": "Industrials", "industry": "Rail"},
		},
	}).WithMaxExactMatchWords(5).WithFacetKeys("sector", "industry")
	h.storeAll("stocks", p)

	expr := facet.Expression{{
		Type: facet.And,
		Values: []facet.Pair{
			{Key: "sector", Value: "Communication Services"},
			{Key: "industry", Value: "Telecom Services"},
		},
	}}
	result, err := h.qe.Suggest(h.ctx, "stocks", "ch", expr)
	if err != nil {
		t.Fatal(err)
	}
	ids := entryIDs(result.ByProvider["stocks"])
	if !contains(ids, "CHTR") {
		t.Fatalf("faceted suggest(ch) = %v, want CHTR", ids)
	}
	if contains(ids, "CHRW") {
		t.Fatalf("faceted suggest(ch) = %v, CHRW should be filtered out", ids)
	}
}

func TestSuggestExactPromotion(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("people", []provider.DictEntry{
		{ID: "EXACT_MA", Term: "Ma", Score: 1, Data: map[string]any{"id": "EXACT_MA"}},
		{ID: "MARY", Term: "Mary Higher Score", Score: 100, Data: map[string]any{"id": "MARY"}},
	}).WithMaxExactMatchWords(3)
	h.storeAll("people", p)

	reg := h.reg
	on, off := true, false
	reg.SetAutocompleterProviderSettings("people", "people", registry.Override{MoveExactMatchesToTop: &off})
	result, err := h.qe.Suggest(h.ctx, "people", "ma", nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := entryIDs(result.ByProvider["people"])
	if len(ids) == 0 || ids[0] != "MARY" {
		t.Fatalf("without promotion, top result = %v, want MARY first", ids)
	}

	reg.SetAutocompleterProviderSettings("people", "people", registry.Override{MoveExactMatchesToTop: &on})
	result, err = h.qe.Suggest(h.ctx, "people", "ma", nil)
	if err != nil {
		t.Fatal(err)
	}
	ids = entryIDs(result.ByProvider["people"])
	if len(ids) == 0 || ids[0] != "EXACT_MA" {
		t.Fatalf("with promotion, top result = %v, want EXACT_MA first", ids)
	}
}

func TestExactSuggestOnlyMatchesExactPostings(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("stocks", []provider.DictEntry{
		{ID: "AAPL", Term: "Apple Inc", Score: 10, Data: map[string]any{"id": "AAPL"}},
	}).WithMaxExactMatchWords(3)
	h.storeAll("finance", p)

	result, err := h.qe.ExactSuggest(h.ctx, "finance", "app")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ByProvider["stocks"]) != 0 {
		t.Fatalf("exact_suggest(app) should not match a prefix-only query, got %v", result.ByProvider["stocks"])
	}

	result, err = h.qe.ExactSuggest(h.ctx, "finance", "apple inc")
	if err != nil {
		t.Fatal(err)
	}
	if !contains(entryIDs(result.ByProvider["stocks"]), "AAPL") {
		t.Fatalf("exact_suggest(apple inc) = %v, want AAPL", result.ByProvider["stocks"])
	}
}

func TestSuggestRemovedItemDisappears(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("stocks", []provider.DictEntry{
		{ID: "AAPL", Term: "Apple Inc", Score: 10, Data: map[string]any{"id": "AAPL"}},
	}).WithMaxExactMatchWords(3)
	h.storeAll("finance", p)

	entry := provider.DictEntry{ID: "AAPL", Term: "Apple Inc", Score: 10}
	if err := h.ix.Remove(h.ctx, p, entry); err != nil {
		t.Fatal(err)
	}

	result, err := h.qe.Suggest(h.ctx, "finance", "app", nil)
	if err != nil {
		t.Fatal(err)
	}
	if contains(entryIDs(result.ByProvider["stocks"]), "AAPL") {
		t.Fatal("removed item should not appear in suggest results")
	}
	exact, err := h.qe.ExactSuggest(h.ctx, "finance", "apple inc")
	if err != nil {
		t.Fatal(err)
	}
	if contains(entryIDs(exact.ByProvider["stocks"]), "AAPL") {
		t.Fatal("removed item should not appear in exact_suggest results")
	}
}

func TestSuggestFlattensSingleProvider(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1, FlattenSingleTypeResults: true})
	p := provider.NewDictProvider("stocks", []provider.DictEntry{
		{ID: "AAPL", Term: "Apple Inc", Score: 10, Data: map[string]any{"id": "AAPL"}},
	}).WithMaxExactMatchWords(3)
	h.storeAll("finance", p)

	result, err := h.qe.Suggest(h.ctx, "finance", "app", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsFlattened() {
		t.Fatal("expected a flattened result for a single-provider autocompleter")
	}
	if !contains(entryIDs(result.Flattened), "AAPL") {
		t.Fatalf("flattened result = %v, want AAPL", result.Flattened)
	}
}

func TestGetProviderResult(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("stocks", []provider.DictEntry{
		{ID: "AAPL", Term: "Apple Inc", Score: 10, Data: map[string]any{"id": "AAPL", "name": "Apple"}},
	}).WithMaxExactMatchWords(3)
	h.storeAll("finance", p)

	payload, err := h.qe.GetProviderResult(h.ctx, "finance", "stocks", "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if payload["name"] != "Apple" {
		t.Fatalf("GetProviderResult = %v, want name=Apple", payload)
	}

	payload, err = h.qe.GetProviderResult(h.ctx, "finance", "stocks", "NOPE")
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) != 0 {
		t.Fatalf("GetProviderResult for unknown id = %v, want empty", payload)
	}

	if _, err := h.qe.GetProviderResult(h.ctx, "finance", "unknown-provider", "AAPL"); err == nil {
		t.Fatal("expected ErrUnknownProvider for an unregistered provider")
	}
}

func TestSuggestCachesResult(t *testing.T) {
	h := newHarness(t, registry.Defaults{MaxResults: 10, MinLetters: 1})
	p := provider.NewDictProvider("stocks", []provider.DictEntry{
		{ID: "AAPL", Term: "Apple Inc", Score: 10, Data: map[string]any{"id": "AAPL"}},
	}).WithMaxExactMatchWords(3)
	h.storeAll("finance", p)

	to := 30 * time.Second
	h.reg.SetAutocompleterProviderSettings("finance", "stocks", registry.Override{CacheTimeout: &to})

	if _, err := h.qe.Suggest(h.ctx, "finance", "app", nil); err != nil {
		t.Fatal(err)
	}

	// Remove the underlying data without going through the cache-purging
	// path; a cached suggest() must still return the stale result.
	if err := h.ix.RemoveAll(h.ctx, "stocks"); err != nil {
		t.Fatal(err)
	}

	result, err := h.qe.Suggest(h.ctx, "finance", "app", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(entryIDs(result.ByProvider["stocks"]), "AAPL") {
		t.Fatal("expected the cached result to still contain AAPL despite remove_all")
	}
}
