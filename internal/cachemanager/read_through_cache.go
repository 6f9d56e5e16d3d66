package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache computes values with fn on a miss and remembers them.
// Failed computations are not cached.
type ReadThroughCache[V any, I any] struct {
	cache     CacheManager[V]
	fn        func(ctx context.Context, input I) (V, error)
	skipCache bool
}

// NewReadThroughCache wraps cache around fn. With skipCache every call runs fn.
func NewReadThroughCache[V any, I any](
	cache CacheManager[V],
	fn func(ctx context.Context, input I) (V, error),
	skipCache bool,
) *ReadThroughCache[V, I] {
	return &ReadThroughCache[V, I]{
		cache:     cache,
		fn:        fn,
		skipCache: skipCache,
	}
}

func (r *ReadThroughCache[V, I]) Get(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	if r.skipCache {
		return r.fn(ctx, input)
	}
	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}
	return r.fill(ctx, key, input, ttl)
}

// GetWithRefresh is Get, but a hit also extends the entry's lifetime.
func (r *ReadThroughCache[V, I]) GetWithRefresh(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	if r.skipCache {
		return r.fn(ctx, input)
	}
	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		return value, nil
	}
	return r.fill(ctx, key, input, ttl)
}

func (r *ReadThroughCache[V, I]) fill(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}
	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}
