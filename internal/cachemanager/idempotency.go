package cachemanager

import (
	"context"
	"sync"
	"time"

	"github.com/zjrosen/rolodex/internal/log"
)

// IdempotentCall runs a function at most once per key within the TTL and
// replays its result for repeated keys. Failed calls are not cached.
type IdempotentCall[K comparable, V any] struct {
	mu    sync.Mutex
	cache CacheManager[K, V]
	ttl   time.Duration
}

func NewIdempotentCall[K comparable, V any](cache CacheManager[K, V], ttl time.Duration) *IdempotentCall[K, V] {
	return &IdempotentCall[K, V]{
		cache: cache,
		ttl:   ttl,
	}
}

// Do returns the cached value for key, or runs fn and caches its result.
// replayed reports whether the value came from the cache.
// The zero key disables caching for the call.
func (c *IdempotentCall[K, V]) Do(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (value V, replayed bool, err error) {
	var zeroKey K
	if key == zeroKey {
		value, err = fn(ctx)
		return value, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if value, ok := c.cache.Get(ctx, key); ok {
		log.Debug(log.CatCache, "idempotent replay", "key", key)
		return value, true, nil
	}

	value, err = fn(ctx)
	if err != nil {
		return value, false, err
	}

	c.cache.Set(ctx, key, value, c.ttl)

	return value, false, nil
}

