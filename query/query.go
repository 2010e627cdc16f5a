// Package query implements the suggest/exact_suggest pipeline: resolving
// a raw prefix query into a ranked, budget-allocated, multi-provider
// result map, with an optional facet filter and a TTL-bounded cache.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/remiges-tech/autocompleter/facet"
	"github.com/remiges-tech/autocompleter/keyschema"
	"github.com/remiges-tech/autocompleter/normalize"
	"github.com/remiges-tech/autocompleter/provider"
	"github.com/remiges-tech/autocompleter/registry"
)

// ErrUnknownProvider is returned by GetProviderResult when providerName
// is not registered under the given autocompleter.
var ErrUnknownProvider = errors.New("query: provider not registered for this autocompleter")

// Result is either a per-provider result map, or — when the resolved
// FlattenSingleTypeResults setting applies and exactly one provider is
// registered — a single flattened list. Exactly one of the two fields is
// non-nil.
type Result struct {
	ByProvider map[string][]map[string]any
	Flattened  []map[string]any
}

// IsFlattened reports whether Flattened should be used in place of
// ByProvider.
func (r Result) IsFlattened() bool { return r.Flattened != nil }

// Engine resolves suggest/exact_suggest queries against Redis posting
// sets built by the index package, under the settings a registry.Registry
// resolves per (autocompleter, provider).
type Engine struct {
	rdb    redis.Cmdable
	schema keyschema.Schema
	reg    *registry.Registry
	log    *zap.Logger
}

// New creates an Engine reading through rdb and reg, under schema's root
// namespace. A nil log uses a no-op logger.
func New(rdb redis.Cmdable, schema keyschema.Schema, reg *registry.Registry, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{rdb: rdb, schema: schema, reg: reg, log: log.Named("query")}
}

// providerState tracks one provider's candidate ids through budget
// allocation.
type providerState struct {
	name      string
	settings  registry.Resolved
	ids       []string
	allowance int
	skipped   bool
}

// acSettings returns the resolved settings this autocompleter's shared,
// non-per-provider knobs are taken from: the first registered provider's
// resolved settings, since the registry has no standalone
// autocompleter-level override layer. With no providers registered, the
// global layer alone applies.
func (e *Engine) acSettings(acName string, providers []provider.Provider) registry.Resolved {
	if len(providers) == 0 {
		return e.reg.Resolve(acName, "")
	}
	return e.reg.Resolve(acName, providers[0].Name()).WithProviderFallback(providers[0])
}

// Suggest resolves q (with an optional facet expression) against every
// provider registered under acName, per spec's prefix-intersection /
// variant-union / optional-exact-promotion / optional-facet-filter /
// budget-allocation pipeline.
func (e *Engine) Suggest(ctx context.Context, acName, q string, facetExpr facet.Expression) (Result, error) {
	providers := e.reg.Providers(acName)
	if len(providers) == 0 {
		return Result{ByProvider: map[string][]map[string]any{}}, nil
	}
	if !facet.Validate(facetExpr) {
		return Result{}, fmt.Errorf("query: %w", ErrMalformedFacets)
	}

	ac := e.acSettings(acName, providers)

	cfg := ac.NormalizeConfig()
	variants := normalize.Variations(q, cfg)
	if len(variants) == 0 {
		return Result{ByProvider: map[string][]map[string]any{}}, nil
	}

	cacheKey := e.schema.Cache(acName, variants[0], facet.Hash(facetExpr))
	if ac.CacheTimeout > 0 {
		if cached, ok, err := e.readCache(ctx, cacheKey); err != nil {
			e.log.Warn("cache read failed", zap.String("key", cacheKey), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	var ephemeral []string
	states := make([]*providerState, len(providers))

	for i, p := range providers {
		resolved := e.reg.Resolve(acName, p.Name()).WithProviderFallback(p)
		state := &providerState{name: p.Name(), settings: resolved}
		states[i] = state

		if len([]rune(q)) < resolved.MinLetters {
			state.skipped = true
			continue
		}

		ids, keys, err := e.providerPrefixResult(ctx, p, variants, facetExpr, resolved)
		ephemeral = append(ephemeral, keys...)
		if err != nil {
			e.cleanupEphemeral(ctx, ephemeral)
			return Result{}, fmt.Errorf("query: suggest provider %q: %w", p.Name(), err)
		}
		state.ids = ids
	}

	e.cleanupEphemeral(ctx, ephemeral)

	allocateBudget(states, ac.MaxResults)

	result, err := e.hydrate(ctx, states)
	if err != nil {
		return Result{}, fmt.Errorf("query: hydrate: %w", err)
	}
	out := e.assembleResult(result, providers, ac.FlattenSingleTypeResults)

	if ac.CacheTimeout > 0 {
		if err := e.writeCache(ctx, cacheKey, out, ac.CacheTimeout); err != nil {
			e.log.Warn("cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return out, nil
}

// ExactSuggest resolves q against each provider's exact-match postings
// only: no prefix intersection, and each provider keeps its own resolved
// MaxResults independently rather than sharing a redistributed budget.
func (e *Engine) ExactSuggest(ctx context.Context, acName, q string) (Result, error) {
	providers := e.reg.Providers(acName)
	if len(providers) == 0 {
		return Result{ByProvider: map[string][]map[string]any{}}, nil
	}

	ac := e.acSettings(acName, providers)
	cfg := ac.NormalizeConfig()
	variants := normalize.Variations(q, cfg)
	if len(variants) == 0 {
		return Result{ByProvider: map[string][]map[string]any{}}, nil
	}

	cacheKey := e.schema.ExactCache(acName, q)
	if ac.CacheTimeout > 0 {
		if cached, ok, err := e.readCache(ctx, cacheKey); err != nil {
			e.log.Warn("cache read failed", zap.String("key", cacheKey), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	states := make([]*providerState, len(providers))
	var ephemeral []string

	for i, p := range providers {
		resolved := e.reg.Resolve(acName, p.Name()).WithProviderFallback(p)
		state := &providerState{name: p.Name(), settings: resolved}
		states[i] = state

		if len([]rune(q)) < resolved.MinLetters {
			state.skipped = true
			continue
		}

		exactKeys := make([]string, 0, len(variants))
		for _, v := range variants {
			exactKeys = append(exactKeys, e.schema.Exact(p.Name(), v))
		}
		source, created, err := e.unionKeys(ctx, p.Name()+".exact", exactKeys)
		ephemeral = append(ephemeral, created...)
		if err != nil {
			e.cleanupEphemeral(ctx, ephemeral)
			return Result{}, fmt.Errorf("query: exact_suggest provider %q: %w", p.Name(), err)
		}
		if source == "" {
			continue
		}

		limit := resolved.MaxResults
		if limit <= 0 {
			limit = ac.MaxResults
		}
		ids, err := e.rdb.ZRange(ctx, source, 0, int64(limit-1)).Result()
		if err != nil {
			e.cleanupEphemeral(ctx, ephemeral)
			return Result{}, fmt.Errorf("query: exact_suggest read provider %q: %w", p.Name(), err)
		}
		state.ids = ids
		state.allowance = limit
	}

	e.cleanupEphemeral(ctx, ephemeral)

	result, err := e.hydrate(ctx, states)
	if err != nil {
		return Result{}, fmt.Errorf("query: hydrate: %w", err)
	}
	out := e.assembleResult(result, providers, ac.FlattenSingleTypeResults)

	if ac.CacheTimeout > 0 {
		if err := e.writeCache(ctx, cacheKey, out, ac.CacheTimeout); err != nil {
			e.log.Warn("cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return out, nil
}

// GetProviderResult returns the stored payload for id under providerName,
// or an empty map if unknown. providerName must be registered under
// acName.
func (e *Engine) GetProviderResult(ctx context.Context, acName, providerName, id string) (map[string]any, error) {
	found := false
	for _, p := range e.reg.Providers(acName) {
		if p.Name() == providerName {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("query: %q: %w", providerName, ErrUnknownProvider)
	}

	raw, err := e.rdb.HGet(ctx, e.schema.Payload(providerName), id).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query: get provider result %q/%q: %w", providerName, id, err)
	}
	return decodePayload(raw)
}
