package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// cacheEnvelope is the JSON shape written to a cache entry, preserving
// which of Result's two shapes (map or flattened list) it represents.
type cacheEnvelope struct {
	ByProvider map[string][]map[string]any `json:"by_provider,omitempty"`
	Flattened  []map[string]any            `json:"flattened"`
}

// readCache looks up key and decodes it into a Result. ok is false on a
// cache miss.
func (e *Engine) readCache(ctx context.Context, key string) (Result, bool, error) {
	raw, err := e.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}

	var env cacheEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Result{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return Result{ByProvider: env.ByProvider, Flattened: env.Flattened}, true, nil
}

// writeCache serializes result and stores it under key with the given
// TTL, as a SET with an expiry (equivalent to SETEX key ttl value).
func (e *Engine) writeCache(ctx context.Context, key string, result Result, ttl time.Duration) error {
	env := cacheEnvelope{ByProvider: result.ByProvider, Flattened: result.Flattened}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return e.rdb.Set(ctx, key, raw, ttl).Err()
}

// PurgeCache deletes every cache entry (suggest and exact_suggest alike)
// for acName, by SCANning the cache-namespace glob patterns rather than
// KEYS, which is unsafe to run against a production Redis instance under
// load. Bulk store/remove operations call this unconditionally; single
// store()/remove() calls do not, since CACHE_TIMEOUT is meant to be
// short enough that staleness is tolerable between bulk writes.
func (e *Engine) PurgeCache(ctx context.Context, acName string) error {
	patterns := []string{e.schema.CachePattern(acName), e.schema.ExactCachePattern(acName)}
	for _, pattern := range patterns {
		if err := e.scanDelete(ctx, pattern); err != nil {
			return fmt.Errorf("query: purge cache for %q: %w", acName, err)
		}
	}
	return nil
}

func (e *Engine) scanDelete(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := e.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := e.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
