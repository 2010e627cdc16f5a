package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/remiges-tech/autocompleter/facet"
	"github.com/remiges-tech/autocompleter/provider"
	"github.com/remiges-tech/autocompleter/registry"
)

// providerPrefixResult computes one provider's candidate id list for a
// prefix suggest() call: per-word prefix intersection, per-variant union,
// optional facet intersection, optional exact-match promotion to the
// front. It returns the final ids (already capped at the provider's
// resolved MaxResults) and every ephemeral key it created, which the
// caller must delete once all providers have been processed.
func (e *Engine) providerPrefixResult(ctx context.Context, p provider.Provider, variants []string, facetExpr facet.Expression, resolved registry.Resolved) ([]string, []string, error) {
	var ephemeral []string

	unionKeys := make([]string, 0, len(variants))
	for _, v := range variants {
		words := strings.Fields(v)
		if len(words) == 0 {
			continue
		}
		if len(words) == 1 {
			unionKeys = append(unionKeys, e.schema.Prefix(p.Name(), words[0]))
			continue
		}

		interKeys := make([]string, len(words))
		for i, w := range words {
			interKeys[i] = e.schema.Prefix(p.Name(), w)
		}
		dest := e.schema.NewEphemeralKey(p.Name() + ".pint")
		if err := e.rdb.ZInterStore(ctx, dest, &redis.ZStore{Keys: interKeys, Aggregate: "MIN"}).Err(); err != nil {
			return nil, ephemeral, fmt.Errorf("intersect words for variant %q: %w", v, err)
		}
		ephemeral = append(ephemeral, dest)
		unionKeys = append(unionKeys, dest)
	}

	resultKey, created, err := e.unionKeys(ctx, p.Name()+".punion", unionKeys)
	ephemeral = append(ephemeral, created...)
	if err != nil {
		return nil, ephemeral, err
	}
	if resultKey == "" {
		return nil, ephemeral, nil
	}

	var facetDictKeys []string
	faceted := len(facetExpr) > 0 && facet.IsSubsetOf(facetExpr, p.FacetKeys())
	if faceted {
		facetDictKeys, created, err = e.facetDictKeys(ctx, p.Name(), facetExpr)
		ephemeral = append(ephemeral, created...)
		if err != nil {
			return nil, ephemeral, err
		}

		dest := e.schema.NewEphemeralKey(p.Name() + ".pfiltered")
		allKeys := append([]string{resultKey}, facetDictKeys...)
		if err := e.rdb.ZInterStore(ctx, dest, &redis.ZStore{Keys: allKeys, Aggregate: "MIN"}).Err(); err != nil {
			return nil, ephemeral, fmt.Errorf("apply facet filter: %w", err)
		}
		ephemeral = append(ephemeral, dest)
		resultKey = dest
	}

	limit := resolved.MaxResults
	if limit <= 0 {
		limit = 1
	}
	ids, err := e.rdb.ZRange(ctx, resultKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, ephemeral, fmt.Errorf("read prefix results: %w", err)
	}

	if resolved.MoveExactMatchesToTop {
		exactIDs, created, err := e.exactPromotionIDs(ctx, p, variants, facetDictKeys, limit)
		ephemeral = append(ephemeral, created...)
		if err != nil {
			return nil, ephemeral, err
		}
		ids = promote(exactIDs, ids, limit)
	}

	return ids, ephemeral, nil
}

// exactPromotionIDs unions the exact postings for every variant, applies
// the same facet filter already computed for the prefix result (so
// promotion cannot bypass faceting), and returns up to limit ids in
// best-score-first order.
func (e *Engine) exactPromotionIDs(ctx context.Context, p provider.Provider, variants []string, facetDictKeys []string, limit int) ([]string, []string, error) {
	var ephemeral []string

	exactKeys := make([]string, 0, len(variants))
	for _, v := range variants {
		exactKeys = append(exactKeys, e.schema.Exact(p.Name(), v))
	}
	source, created, err := e.unionKeys(ctx, p.Name()+".eunion", exactKeys)
	ephemeral = append(ephemeral, created...)
	if err != nil || source == "" {
		return nil, ephemeral, err
	}

	if len(facetDictKeys) > 0 {
		dest := e.schema.NewEphemeralKey(p.Name() + ".efiltered")
		allKeys := append([]string{source}, facetDictKeys...)
		if err := e.rdb.ZInterStore(ctx, dest, &redis.ZStore{Keys: allKeys, Aggregate: "MIN"}).Err(); err != nil {
			return nil, ephemeral, fmt.Errorf("apply facet filter to exact matches: %w", err)
		}
		ephemeral = append(ephemeral, dest)
		source = dest
	}

	ids, err := e.rdb.ZRange(ctx, source, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, ephemeral, fmt.Errorf("read exact matches: %w", err)
	}
	return ids, ephemeral, nil
}

// promote places exact (already best-score-first) ahead of prefix,
// de-duplicating entries that appear in both, and truncates to limit.
func promote(exact, prefix []string, limit int) []string {
	if len(exact) == 0 {
		return prefix
	}
	seen := make(map[string]bool, len(exact))
	out := make([]string, 0, limit)
	for _, id := range exact {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range prefix {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// facetDictKeys computes one ephemeral ordered-set key per facet.Dict in
// expr: an intersection for "and", a union for "or".
func (e *Engine) facetDictKeys(ctx context.Context, providerName string, expr facet.Expression) ([]string, []string, error) {
	var ephemeral []string
	dictKeys := make([]string, 0, len(expr))

	for _, dict := range expr {
		pairKeys := make([]string, len(dict.Values))
		for i, pair := range dict.Values {
			pairKeys[i] = e.schema.FacetSet(providerName, pair.Key, pair.Value)
		}
		dest := e.schema.NewEphemeralKey(providerName + ".facet")
		var err error
		if dict.Type == facet.Or {
			err = e.rdb.ZUnionStore(ctx, dest, &redis.ZStore{Keys: pairKeys, Aggregate: "MIN"}).Err()
		} else {
			err = e.rdb.ZInterStore(ctx, dest, &redis.ZStore{Keys: pairKeys, Aggregate: "MIN"}).Err()
		}
		ephemeral = append(ephemeral, dest)
		if err != nil {
			return dictKeys, ephemeral, fmt.Errorf("compute facet dict %v: %w", dict, err)
		}
		dictKeys = append(dictKeys, dest)
	}
	return dictKeys, ephemeral, nil
}

// unionKeys unions keys (ZUNIONSTORE, aggregate MIN) into a fresh
// ephemeral key and returns it, unless keys has 0 or 1 entries: an empty
// list needs no union (returns "" for "no candidates"), and a single key
// is returned as-is with no copy.
func (e *Engine) unionKeys(ctx context.Context, tag string, keys []string) (string, []string, error) {
	switch len(keys) {
	case 0:
		return "", nil, nil
	case 1:
		return keys[0], nil, nil
	default:
		dest := e.schema.NewEphemeralKey(tag)
		if err := e.rdb.ZUnionStore(ctx, dest, &redis.ZStore{Keys: keys, Aggregate: "MIN"}).Err(); err != nil {
			return "", []string{dest}, fmt.Errorf("union keys: %w", err)
		}
		return dest, []string{dest}, nil
	}
}

// cleanupEphemeral deletes every ephemeral key this request created with
// a single DEL, tolerating failure (best-effort per spec.md §5).
func (e *Engine) cleanupEphemeral(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := e.rdb.Del(ctx, keys...).Err(); err != nil {
		e.log.Warn("ephemeral key cleanup failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
