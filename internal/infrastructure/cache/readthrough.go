package cache

import (
	"context"
	"encoding/json"
	"time"

	"relatio/pkg/logger"
)

// DefaultTTL is the safety-net expiry for cached lists. Correctness relies
// on explicit invalidation, not on this TTL.
const DefaultTTL = 5 * time.Minute

// ReadThrough wraps a Cache with typed load-or-fetch semantics, keeping the
// invalidate-on-write contract in one place. Values are stored as JSON so
// any Cache implementation (in-process or external) can hold them.
type ReadThrough[T any] struct {
	cache Cache
	ttl   time.Duration
}

// NewReadThrough creates a read-through wrapper. ttl <= 0 uses DefaultTTL.
func NewReadThrough[T any](c Cache, ttl time.Duration) *ReadThrough[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ReadThrough[T]{cache: c, ttl: ttl}
}

// Load returns the cached value for key, or runs loader and caches its
// result. Cache decode failures fall back to the loader; a failed loader
// never populates the cache.
func (r *ReadThrough[T]) Load(ctx context.Context, key string, loader func(ctx context.Context) (T, error)) (T, error) {
	if data, ok := r.cache.Get(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		logger.Warn(ctx, "dropping undecodable cache entry", "key", key)
		r.cache.Delete(ctx, key)
	}

	loaded, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if data, err := json.Marshal(loaded); err == nil {
		r.cache.Set(ctx, key, data, r.ttl)
	}
	return loaded, nil
}

// Invalidate drops the cached value for key.
func (r *ReadThrough[T]) Invalidate(ctx context.Context, key string) {
	r.cache.Delete(ctx, key)
}
