// Package autocompleter ties the registry, index, and query packages
// together into the single entry point a caller embeds: register
// providers under an autocompleter name, index their items, and resolve
// suggest/exact_suggest queries against what's indexed.
//
// Basic usage:
//
//	cfg := autocompleter.NewConfig("localhost:6379")
//	cfg.Defaults.MaxResults = 10
//	eng, err := autocompleter.New(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	eng.RegisterProvider("finance", stockProvider)
//	eng.StoreAll(ctx, "finance", stockProvider, true)
//
//	result, err := eng.Suggest(ctx, "finance", "app", nil)
package autocompleter

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/remiges-tech/autocompleter/facet"
	"github.com/remiges-tech/autocompleter/index"
	"github.com/remiges-tech/autocompleter/keyschema"
	"github.com/remiges-tech/autocompleter/provider"
	"github.com/remiges-tech/autocompleter/query"
	"github.com/remiges-tech/autocompleter/registry"
)

// Engine is the top-level facade: a registry of autocompleter/provider
// registrations, an Indexer that writes through to Redis, and a query
// Engine that reads back through it. All methods are safe for
// concurrent use.
type Engine struct {
	rdb    *redis.Client
	schema keyschema.Schema
	reg    *registry.Registry
	ix     *index.Indexer
	qe     *query.Engine
	log    *zap.Logger
}

// New connects to Redis per cfg.Redis and returns a ready Engine. It
// returns registry.ErrMissingMaxResults if cfg.Defaults.MaxResults is not
// configured. log may be nil, in which case a no-op logger is used.
func New(cfg Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	root := cfg.KeyRoot
	if root == "" {
		root = defaultKeyRoot
	}

	reg, err := registry.New(cfg.Defaults)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(cfg.Redis)
	schema := keyschema.New(root)

	return &Engine{
		rdb:    rdb,
		schema: schema,
		reg:    reg,
		ix:     index.New(rdb, schema, log),
		qe:     query.New(rdb, schema, reg, log),
		log:    log.Named("autocompleter"),
	}, nil
}

// Close releases the underlying Redis connection pool.
func (e *Engine) Close() error {
	return e.rdb.Close()
}

// RegisterProvider adds p to the ordered provider list for autocompleter.
// Registering the same provider name twice under the same autocompleter
// is a no-op on the second call.
func (e *Engine) RegisterProvider(autocompleter string, p provider.Provider) error {
	if autocompleter == "" {
		return ErrEmptyAutocompleterName
	}
	if p == nil {
		return ErrNilProvider
	}
	e.reg.Register(autocompleter, p)
	return nil
}

// SetProviderSettings installs the provider-level settings override layer,
// applied under every autocompleter p is registered under unless
// overridden again at the autocompleter+provider layer.
func (e *Engine) SetProviderSettings(providerName string, o registry.Override) {
	e.reg.SetProviderSettings(providerName, o)
}

// SetAutocompleterProviderSettings installs the highest-priority settings
// layer, specific to one (autocompleter, provider) pair.
func (e *Engine) SetAutocompleterProviderSettings(autocompleter, providerName string, o registry.Override) {
	e.reg.SetAutocompleterProviderSettings(autocompleter, providerName, o)
}

// resolvedIndexSettings projects the registry's resolved settings for
// (autocompleter, p) into the subset index.Indexer needs.
func (e *Engine) resolvedIndexSettings(autocompleter string, p provider.Provider) index.Settings {
	resolved := e.reg.Resolve(autocompleter, p.Name()).WithProviderFallback(p)
	return index.Settings{
		Normalize:          resolved.NormalizeConfig(),
		MaxExactMatchWords: resolved.MaxExactMatchWords,
	}
}

// Store indexes a single item under the given autocompleter's resolved
// settings for p. deleteOld controls whether stale postings from a prior
// Store of the same item are retracted (see index.Indexer.Store).
func (e *Engine) Store(ctx context.Context, autocompleter string, p provider.Provider, item provider.Item, deleteOld bool) error {
	settings := e.resolvedIndexSettings(autocompleter, p)
	return e.ix.Store(ctx, p, item, settings, deleteOld)
}

// Remove retracts a single item's postings and payload.
func (e *Engine) Remove(ctx context.Context, p provider.Provider, item provider.Item) error {
	return e.ix.Remove(ctx, p, item)
}

// RemoveByID retracts postings and payload for id without needing the
// original item value.
func (e *Engine) RemoveByID(ctx context.Context, providerName, id string) error {
	return e.ix.RemoveByID(ctx, providerName, id)
}

// StoreAll reindexes every item p's Iterator yields, then unconditionally
// purges autocompleter's query cache namespace: a bulk write invalidates
// the cache regardless of CacheTimeout, since per-item Store/Remove
// deliberately does not (spec: individual writes tolerate a short window
// of staleness; bulk rebuilds must not).
func (e *Engine) StoreAll(ctx context.Context, autocompleter string, p provider.Provider, deleteOld bool) error {
	settings := e.resolvedIndexSettings(autocompleter, p)
	if err := e.ix.StoreAll(ctx, p, settings, deleteOld); err != nil {
		return err
	}
	if err := e.qe.PurgeCache(ctx, autocompleter); err != nil {
		return fmt.Errorf("autocompleter: purge cache after store_all: %w", err)
	}
	return nil
}

// RemoveAll deletes every posting, bookkeeping set, and payload for
// providerName, then unconditionally purges autocompleter's query cache
// namespace.
func (e *Engine) RemoveAll(ctx context.Context, autocompleter, providerName string) error {
	if err := e.ix.RemoveAll(ctx, providerName); err != nil {
		return err
	}
	if err := e.qe.PurgeCache(ctx, autocompleter); err != nil {
		return fmt.Errorf("autocompleter: purge cache after remove_all: %w", err)
	}
	return nil
}

// Suggest resolves a prefix query against every provider registered
// under autocompleter, honoring facetExpr when non-empty. See
// query.Engine.Suggest.
func (e *Engine) Suggest(ctx context.Context, autocompleter, q string, facetExpr facet.Expression) (query.Result, error) {
	return e.qe.Suggest(ctx, autocompleter, q, facetExpr)
}

// ExactSuggest resolves an exact-match query against every provider
// registered under autocompleter. See query.Engine.ExactSuggest.
func (e *Engine) ExactSuggest(ctx context.Context, autocompleter, q string) (query.Result, error) {
	return e.qe.ExactSuggest(ctx, autocompleter, q)
}

// GetProviderResult returns the stored payload for id under providerName,
// or an empty map if unknown.
func (e *Engine) GetProviderResult(ctx context.Context, autocompleter, providerName, id string) (map[string]any, error) {
	return e.qe.GetProviderResult(ctx, autocompleter, providerName, id)
}

// PurgeCache deletes every cached suggest/exact_suggest entry for
// autocompleter.
func (e *Engine) PurgeCache(ctx context.Context, autocompleter string) error {
	return e.qe.PurgeCache(ctx, autocompleter)
}
