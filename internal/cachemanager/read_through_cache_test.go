package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type counter struct {
	calls int
	err   error
}

func (c *counter) compute(_ context.Context, input string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "compiled:" + input, nil
}

func newTestCache() *InMemoryCacheManager[string] {
	return NewInMemoryCacheManager[string]("test", DefaultExpiration, DefaultCleanupInterval)
}

func TestReadThroughCache_MissComputesAndStores(t *testing.T) {
	c := &counter{}
	cache := newTestCache()
	rt := NewReadThroughCache[string, string](cache, c.compute, false)

	got, err := rt.Get(context.Background(), "k", "src", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "compiled:src", got)

	got, err = rt.Get(context.Background(), "k", "ignored", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "compiled:src", got, "a hit must not recompute")
	require.Equal(t, 1, c.calls)
}

func TestReadThroughCache_ErrorNotCached(t *testing.T) {
	c := &counter{err: errors.New("boom")}
	cache := newTestCache()
	rt := NewReadThroughCache[string, string](cache, c.compute, false)

	_, err := rt.Get(context.Background(), "k", "src", time.Minute)
	require.Error(t, err)
	require.Zero(t, cache.Len())

	c.err = nil
	got, err := rt.GetWithRefresh(context.Background(), "k", "src", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "compiled:src", got)
	require.Equal(t, 2, c.calls)
}

func TestReadThroughCache_SkipCacheAlwaysComputes(t *testing.T) {
	c := &counter{}
	rt := NewReadThroughCache[string, string](newTestCache(), c.compute, true)

	for range 3 {
		_, err := rt.Get(context.Background(), "k", "src", time.Minute)
		require.NoError(t, err)
		_, err = rt.GetWithRefresh(context.Background(), "k", "src", time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, 6, c.calls)
}
