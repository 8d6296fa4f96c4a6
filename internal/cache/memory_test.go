package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/observability"
)

func newTestMemoryCache(maxEntries int) *memoryCache {
	cfg := &config.CacheConfig{
		Enabled:    true,
		Type:       config.BackendMemory,
		MaxEntries: maxEntries,
	}
	return newMemoryCache(cfg, observability.NopLogger())
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := newTestMemoryCache(100)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "key1", []byte("value1"), time.Minute)
	require.NoError(t, err)

	value, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)
}

func TestMemoryCache_Get_Miss(t *testing.T) {
	cache := newTestMemoryCache(100)
	defer cache.Close()

	_, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Get_Expired(t *testing.T) {
	cache := newTestMemoryCache(100)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "key1", []byte("value1"), time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = cache.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Set_Update(t *testing.T) {
	cache := newTestMemoryCache(100)
	defer cache.Close()

	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", []byte("old"), time.Minute))
	require.NoError(t, cache.Set(ctx, "key1", []byte("new"), time.Minute))

	value, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), value)
}

func TestMemoryCache_Eviction(t *testing.T) {
	cache := newTestMemoryCache(2)
	defer cache.Close()

	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", []byte("v1"), time.Minute))
	require.NoError(t, cache.Set(ctx, "key2", []byte("v2"), time.Minute))

	// Touch key1 so key2 becomes the LRU entry.
	_, err := cache.Get(ctx, "key1")
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, "key3", []byte("v3"), time.Minute))

	_, err = cache.Get(ctx, "key2")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = cache.Get(ctx, "key1")
	assert.NoError(t, err)
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := newTestMemoryCache(100)
	defer cache.Close()

	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", []byte("v1"), time.Minute))
	require.NoError(t, cache.Delete(ctx, "key1"))

	_, err := cache.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	cache := newTestMemoryCache(100)
	defer cache.Close()

	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "GET:/api/todos", []byte("a"), time.Minute))
	require.NoError(t, cache.Set(ctx, "GET:/api/todos?page=2", []byte("b"), time.Minute))
	require.NoError(t, cache.Set(ctx, "GET:/api/posts", []byte("c"), time.Minute))

	require.NoError(t, cache.DeletePrefix(ctx, "GET:/api/todos"))

	_, err := cache.Get(ctx, "GET:/api/todos")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = cache.Get(ctx, "GET:/api/todos?page=2")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value, err := cache.Get(ctx, "GET:/api/posts")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), value)
}

func TestMemoryCache_ValueIsCopied(t *testing.T) {
	cache := newTestMemoryCache(100)
	defer cache.Close()

	ctx := context.Background()

	original := []byte("value")
	require.NoError(t, cache.Set(ctx, "key1", original, time.Minute))
	original[0] = 'X'

	value, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := newTestMemoryCache(1000)
	defer cache.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				_ = cache.Set(ctx, key, []byte("v"), time.Minute)
				_, _ = cache.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}
