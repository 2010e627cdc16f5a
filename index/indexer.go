// Package index implements the indexing pipeline: it converts one source
// item into prefix, exact-match, and facet postings held in Redis sorted
// sets, and retracts them again on removal. See keyschema for the key
// shapes and normalize for the term canonicalization it builds postings
// from.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/remiges-tech/autocompleter/keyschema"
	"github.com/remiges-tech/autocompleter/normalize"
	"github.com/remiges-tech/autocompleter/provider"
)

// ErrEmptyItemID is returned when a provider's ItemID resolves to "".
var ErrEmptyItemID = errors.New("item id must not be empty")

// deleteChunkSize bounds how many keys a single DEL command in a bulk
// teardown touches.
const deleteChunkSize = 100

// Settings is the indexing-relevant subset of a provider's resolved
// configuration.
type Settings struct {
	Normalize          normalize.Config
	MaxExactMatchWords int
}

// Indexer writes and retracts postings for one provider namespace at a
// time, backed directly by Redis sorted sets and hashes. All methods are
// safe for concurrent use; a single pipeline failure aborts that item and
// is returned to the caller, with no partial-success compensation.
type Indexer struct {
	rdb    redis.Cmdable
	schema keyschema.Schema
	log    *zap.Logger
}

// New creates an Indexer writing through rdb under schema's root
// namespace. A nil log uses a no-op logger.
func New(rdb redis.Cmdable, schema keyschema.Schema, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{rdb: rdb, schema: schema, log: log.Named("index")}
}

type facetPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// storedScore converts a logical score (higher is better) into Redis'
// ascending sort order: its reciprocal, with the 0 sentinel mapped to +Inf
// so a logical-zero item always sorts last.
func storedScore(logical float64) float64 {
	if logical == 0 {
		return math.Inf(1)
	}
	return 1 / logical
}

func facetPairs(facets map[string]string) []facetPair {
	pairs := make([]facetPair, 0, len(facets))
	for k, v := range facets {
		pairs = append(pairs, facetPair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Key != pairs[j].Key {
			return pairs[i].Key < pairs[j].Key
		}
		return pairs[i].Value < pairs[j].Value
	})
	return pairs
}

// expandVariants computes the full normalized-and-alias-expanded variant
// set for an item's raw terms: every join-char interpretation of every
// term, with every alias substitution layered on top.
func expandVariants(terms []string, p provider.Provider, cfg normalize.Config) []string {
	aliasMap := normalize.BuildAliasMap(p.PhraseAliases(), p.OneWayPhraseAliases(), cfg)

	seen := make(map[string]bool)
	var out []string
	for _, term := range terms {
		for _, v := range normalize.Variations(term, cfg) {
			for _, aliased := range normalize.ExpandAliases(v, aliasMap) {
				if !seen[aliased] {
					seen[aliased] = true
					out = append(out, aliased)
				}
			}
		}
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sameFacets(a, b []facetPair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// priorState reads the previously-stored normalized term variants and
// facet list for id, or (nil, nil) if the id was never stored.
func (ix *Indexer) priorState(ctx context.Context, providerName, id string) ([]string, []facetPair, error) {
	termsRaw, err := ix.rdb.HGet(ctx, ix.schema.Terms(providerName), id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}
	var terms []string
	if err == nil {
		if uerr := json.Unmarshal([]byte(termsRaw), &terms); uerr != nil {
			return nil, nil, uerr
		}
	}

	facetsRaw, err := ix.rdb.HGet(ctx, ix.schema.Facets(providerName), id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}
	var facets []facetPair
	if err == nil {
		if uerr := json.Unmarshal([]byte(facetsRaw), &facets); uerr != nil {
			return nil, nil, uerr
		}
	}
	return terms, facets, nil
}

// Store indexes item under provider p. It resolves (id, terms, score,
// payload, facets) via p, computes the normalized-and-alias-expanded
// variant set, and compares it against the prior stored state: unchanged
// terms and facets take the fast path of touching only the id->payload
// hash (I5); otherwise prior postings are retracted (when deleteOld) and
// the full posting set is rewritten in a single pipeline.
//
// If p.IncludeItem(item) is false, Store is equivalent to Remove.
func (ix *Indexer) Store(ctx context.Context, p provider.Provider, item provider.Item, settings Settings, deleteOld bool) error {
	if !p.IncludeItem(item) {
		return ix.Remove(ctx, p, item)
	}

	providerName := p.Name()

	id, err := p.ItemID(item)
	if err != nil {
		return fmt.Errorf("index: resolve item id: %w", err)
	}
	if id == "" {
		return fmt.Errorf("index: %w", ErrEmptyItemID)
	}

	terms, err := p.Terms(item)
	if err != nil {
		return fmt.Errorf("index: resolve terms for %q/%q: %w", providerName, id, err)
	}
	score, err := p.Score(item)
	if err != nil {
		return fmt.Errorf("index: resolve score for %q/%q: %w", providerName, id, err)
	}
	data, err := p.Data(item)
	if err != nil {
		return fmt.Errorf("index: resolve data for %q/%q: %w", providerName, id, err)
	}
	facets, err := p.Facets(item)
	if err != nil {
		return fmt.Errorf("index: resolve facets for %q/%q: %w", providerName, id, err)
	}

	variants := expandVariants(terms, p, settings.Normalize)
	facetList := facetPairs(facets)

	priorVariants, priorFacets, err := ix.priorState(ctx, providerName, id)
	if err != nil {
		return fmt.Errorf("index: read prior state for %q/%q: %w", providerName, id, err)
	}

	payloadJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("index: marshal payload for %q/%q: %w", providerName, id, err)
	}

	if sameStrings(variants, priorVariants) && sameFacets(facetList, priorFacets) {
		if err := ix.rdb.HSet(ctx, ix.schema.Payload(providerName), id, payloadJSON).Err(); err != nil {
			return fmt.Errorf("index: fast-path store %q/%q: %w", providerName, id, err)
		}
		return nil
	}

	pipe := ix.rdb.Pipeline()

	if deleteOld {
		if !sameStrings(variants, priorVariants) {
			retractTerms(ctx, pipe, ix.schema, providerName, id, priorVariants)
		}
		if !sameFacets(facetList, priorFacets) {
			retractFacets(ctx, pipe, ix.schema, providerName, id, priorFacets)
		}
	}

	writeTerms(ctx, pipe, ix.schema, providerName, id, variants, storedScore(score), settings.MaxExactMatchWords)
	writeFacets(ctx, pipe, ix.schema, providerName, id, facetList, storedScore(score))

	termsJSON, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("index: marshal terms for %q/%q: %w", providerName, id, err)
	}
	pipe.HSet(ctx, ix.schema.Payload(providerName), id, payloadJSON)
	pipe.HSet(ctx, ix.schema.Terms(providerName), id, termsJSON)
	if len(facetList) > 0 {
		facetsJSON, err := json.Marshal(facetList)
		if err != nil {
			return fmt.Errorf("index: marshal facets for %q/%q: %w", providerName, id, err)
		}
		pipe.HSet(ctx, ix.schema.Facets(providerName), id, facetsJSON)
	} else {
		pipe.HDel(ctx, ix.schema.Facets(providerName), id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		ix.log.Error("store pipeline failed", zap.String("provider", providerName), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("index: store %q/%q: %w", providerName, id, err)
	}
	return nil
}

// Remove retracts item's postings and deletes its payload/terms/facets
// entries. Removing an item that was never stored is a no-op.
func (ix *Indexer) Remove(ctx context.Context, p provider.Provider, item provider.Item) error {
	id, err := p.ItemID(item)
	if err != nil {
		return fmt.Errorf("index: resolve item id: %w", err)
	}
	return ix.RemoveByID(ctx, p.Name(), id)
}

// RemoveByID retracts postings for a known (providerName, id) pair
// without needing the original item, e.g. when an item no longer exists
// in its source.
func (ix *Indexer) RemoveByID(ctx context.Context, providerName, id string) error {
	variants, facets, err := ix.priorState(ctx, providerName, id)
	if err != nil {
		return fmt.Errorf("index: read prior state for %q/%q: %w", providerName, id, err)
	}

	pipe := ix.rdb.Pipeline()
	retractTerms(ctx, pipe, ix.schema, providerName, id, variants)
	retractFacets(ctx, pipe, ix.schema, providerName, id, facets)
	pipe.HDel(ctx, ix.schema.Payload(providerName), id)
	pipe.HDel(ctx, ix.schema.Terms(providerName), id)
	pipe.HDel(ctx, ix.schema.Facets(providerName), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index: remove %q/%q: %w", providerName, id, err)
	}
	return nil
}

// writeTerms adds id to the prefix posting of every non-empty prefix of
// every word of every variant, and to the exact posting of every variant
// whose word count is within maxExactMatchWords (0 disables exact-match
// indexing entirely).
func writeTerms(ctx context.Context, pipe redis.Pipeliner, schema keyschema.Schema, providerName, id string, variants []string, score float64, maxExactMatchWords int) {
	for _, v := range variants {
		words := strings.Fields(v)
		for _, w := range words {
			var prefix strings.Builder
			for _, r := range w {
				prefix.WriteRune(r)
				p := prefix.String()
				pipe.ZAdd(ctx, schema.Prefix(providerName, p), &redis.Z{Score: score, Member: id})
				pipe.SAdd(ctx, schema.PrefixSet(providerName), p)
			}
		}

		if maxExactMatchWords > 0 && len(words) <= maxExactMatchWords {
			pipe.ZAdd(ctx, schema.Exact(providerName, v), &redis.Z{Score: score, Member: id})
			pipe.SAdd(ctx, schema.ExactSet(providerName), v)
		}
	}
}

func writeFacets(ctx context.Context, pipe redis.Pipeliner, schema keyschema.Schema, providerName, id string, facets []facetPair, score float64) {
	for _, f := range facets {
		pipe.ZAdd(ctx, schema.FacetSet(providerName, f.Key, f.Value), &redis.Z{Score: score, Member: id})
	}
}

// retractTerms removes id from every prefix/exact posting implied by
// variants, and prunes the corresponding bookkeeping-set entries
// unconditionally — matching the original engine's behavior of always
// SREM-ing a retracted prefix/term even though another id may still
// reference it; a subsequent store() for that other id re-adds the
// bookkeeping entry via SADD, which is idempotent.
func retractTerms(ctx context.Context, pipe redis.Pipeliner, schema keyschema.Schema, providerName, id string, variants []string) {
	for _, v := range variants {
		words := strings.Fields(v)
		for _, w := range words {
			var prefix strings.Builder
			for _, r := range w {
				prefix.WriteRune(r)
				p := prefix.String()
				pipe.ZRem(ctx, schema.Prefix(providerName, p), id)
				pipe.SRem(ctx, schema.PrefixSet(providerName), p)
			}
		}
		pipe.ZRem(ctx, schema.Exact(providerName, v), id)
		pipe.SRem(ctx, schema.ExactSet(providerName), v)
	}
}

func retractFacets(ctx context.Context, pipe redis.Pipeliner, schema keyschema.Schema, providerName, id string, facets []facetPair) {
	for _, f := range facets {
		pipe.ZRem(ctx, schema.FacetSet(providerName, f.Key, f.Value), id)
	}
}

// StoreAll stores every item a provider's source currently holds.
func (ix *Indexer) StoreAll(ctx context.Context, p provider.Provider, settings Settings, deleteOld bool) error {
	it, err := p.Iterator(ctx)
	if err != nil {
		return fmt.Errorf("index: get iterator for %q: %w", p.Name(), err)
	}
	defer it.Close()

	count := 0
	for {
		item, ok, err := it.Next(ctx)
		if err != nil {
			return fmt.Errorf("index: iterate %q: %w", p.Name(), err)
		}
		if !ok {
			break
		}
		if err := ix.Store(ctx, p, item, settings, deleteOld); err != nil {
			return fmt.Errorf("index: store_all %q: %w", p.Name(), err)
		}
		count++
	}
	ix.log.Info("store_all complete", zap.String("provider", p.Name()), zap.Int("count", count))
	return nil
}

// RemoveAll deletes every posting, bookkeeping set, and hash belonging to
// providerName, even for items whose source record no longer exists. It
// discovers what to delete entirely from the bookkeeping sets and the
// facet map, then issues chunked DEL commands.
func (ix *Indexer) RemoveAll(ctx context.Context, providerName string) error {
	prefixes, err := ix.rdb.SMembers(ctx, ix.schema.PrefixSet(providerName)).Result()
	if err != nil {
		return fmt.Errorf("index: list prefixes for %q: %w", providerName, err)
	}
	exactTerms, err := ix.rdb.SMembers(ctx, ix.schema.ExactSet(providerName)).Result()
	if err != nil {
		return fmt.Errorf("index: list exact terms for %q: %w", providerName, err)
	}
	facetSetKeys, err := ix.collectFacetSetKeys(ctx, providerName)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(prefixes)+len(exactTerms)+len(facetSetKeys)+5)
	for _, pfx := range prefixes {
		keys = append(keys, ix.schema.Prefix(providerName, pfx))
	}
	for _, term := range exactTerms {
		keys = append(keys, ix.schema.Exact(providerName, term))
	}
	keys = append(keys, facetSetKeys...)
	keys = append(keys,
		ix.schema.PrefixSet(providerName),
		ix.schema.ExactSet(providerName),
		ix.schema.Payload(providerName),
		ix.schema.Terms(providerName),
		ix.schema.Facets(providerName),
	)

	if err := ix.deleteChunked(ctx, keys); err != nil {
		return fmt.Errorf("index: remove_all %q: %w", providerName, err)
	}
	ix.log.Info("remove_all complete", zap.String("provider", providerName), zap.Int("keys_deleted", len(keys)))
	return nil
}

func (ix *Indexer) collectFacetSetKeys(ctx context.Context, providerName string) ([]string, error) {
	all, err := ix.rdb.HGetAll(ctx, ix.schema.Facets(providerName)).Result()
	if err != nil {
		return nil, fmt.Errorf("index: read facet map for %q: %w", providerName, err)
	}

	seen := make(map[string]bool)
	var keys []string
	for _, raw := range all {
		var pairs []facetPair
		if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
			continue
		}
		for _, p := range pairs {
			key := ix.schema.FacetSet(providerName, p.Key, p.Value)
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func (ix *Indexer) deleteChunked(ctx context.Context, keys []string) error {
	for i := 0; i < len(keys); i += deleteChunkSize {
		end := i + deleteChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		if len(keys[i:end]) == 0 {
			continue
		}
		if err := ix.rdb.Del(ctx, keys[i:end]...).Err(); err != nil {
			return err
		}
	}
	return nil
}
