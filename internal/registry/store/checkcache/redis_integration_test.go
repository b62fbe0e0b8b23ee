//go:build integration

package checkcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regcore/pkg/testutil/containers"
)

func TestRedisCache(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	cache := NewRedis(rc.Client, time.Minute)

	_, ok, err := cache.Get(ctx, "example.test")
	require.NoError(t, err)
	assert.False(t, ok, "cold cache misses")

	require.NoError(t, cache.Set(ctx, "example.test", false))
	available, ok, err := cache.Get(ctx, "example.test")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, available)

	require.NoError(t, cache.Set(ctx, "free.test", true))
	available, ok, err = cache.Get(ctx, "free.test")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, available)

	require.NoError(t, cache.Invalidate(ctx, "example.test"))
	_, ok, err = cache.Get(ctx, "example.test")
	require.NoError(t, err)
	assert.False(t, ok, "invalidation drops the entry")
}

func TestRedisCacheTTL(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	cache := NewRedis(rc.Client, time.Second)

	require.NoError(t, cache.Set(ctx, "example.test", true))
	time.Sleep(1500 * time.Millisecond)

	_, ok, err := cache.Get(ctx, "example.test")
	require.NoError(t, err)
	assert.False(t, ok, "entries expire after the TTL")
}
