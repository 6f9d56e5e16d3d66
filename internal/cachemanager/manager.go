// Package cachemanager provides small generic caches over go-cache.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a typed, TTL-aware cache keyed by string.
type CacheManager[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
	Len() int
}
