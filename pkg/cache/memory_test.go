package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type candle struct {
	Close float64 `json:"close"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "candles:BTC:1d", []candle{{Close: 1}, {Close: 2}}, time.Minute))

	var got []candle
	require.NoError(t, mc.Get(ctx, "candles:BTC:1d", &got))
	assert.Equal(t, []candle{{Close: 1}, {Close: 2}}, got)

	var raw string
	require.NoError(t, mc.Set(ctx, "plain", "value", 0))
	require.NoError(t, mc.Get(ctx, "plain", &raw))
	assert.Equal(t, "value", raw)
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "absent", &s), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "x", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	key := Key("analysis", "published", "req-1")

	ok, err := mc.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, key))
	ok, err = mc.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheTryLockAfterTTL(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, _ := mc.TryLock(ctx, "k", 10*time.Millisecond)
	require.True(t, ok)
	time.Sleep(20 * time.Millisecond)
	ok, _ = mc.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &s))
}
