package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClient_GetSet(t *testing.T) {
	cache := newTestRedis(t)
	ctx := context.Background()

	var missing string
	assert.ErrorIs(t, cache.Get(ctx, "nope", &missing), ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	var got map[string]int
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])
}

func TestRedisClient_AddToSetIsIdempotent(t *testing.T) {
	cache := newTestRedis(t)
	ctx := context.Background()

	n, err := cache.AddToSet(ctx, "chunks", "0", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = cache.AddToSet(ctx, "chunks", "0", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = cache.AddToSet(ctx, "chunks", "1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	members, err := cache.SetMembers(ctx, "chunks")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0", "1"}, members)
}

func TestRedisClient_AllowFixedWindow(t *testing.T) {
	cache := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := cache.Allow(ctx, "hook", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := cache.Allow(ctx, "hook", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = cache.Allow(ctx, "other", 3, time.Minute)
	assert.True(t, ok)
}
