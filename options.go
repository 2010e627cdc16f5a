package autocompleter

import (
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/remiges-tech/autocompleter/registry"
)

// defaultKeyRoot is the Redis key namespace used when Config.KeyRoot is
// left blank.
const defaultKeyRoot = "djac"

// Config holds everything needed to construct an Engine: the Redis
// connection, the key namespace it lives under, and the global settings
// layer every autocompleter falls back to absent a provider or
// autocompleter+provider override.
type Config struct {
	// Redis is passed to redis.NewClient as-is. Addr is the only field
	// most callers need to set.
	Redis *redis.Options

	// KeyRoot namespaces every key this Engine reads or writes. Defaults
	// to "djac".
	KeyRoot string

	// Defaults is the global settings layer (lowest priority). MaxResults
	// must be set to a positive value.
	Defaults registry.Defaults
}

// NewConfig returns a Config pointed at addr with the documented
// defaults: a 10-result budget, 1-letter minimum query length, and no
// query cache.
func NewConfig(addr string) Config {
	return Config{
		Redis:   &redis.Options{Addr: addr},
		KeyRoot: defaultKeyRoot,
		Defaults: registry.Defaults{
			MaxResults:   10,
			MinLetters:   1,
			CacheTimeout: 0 * time.Second,
		},
	}
}
