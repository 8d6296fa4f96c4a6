package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedisStoreWithClient(client, "test:")
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

func TestRedisStore_IncrementWithExpiry(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	count, err := s.IncrementWithExpiry(ctx, "key1", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.IncrementWithExpiry(ctx, "key1", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRedisStore_IncrementWithExpiry_SetsTTL(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.IncrementWithExpiry(ctx, "key1", 1, time.Minute)
	require.NoError(t, err)

	ttl := mr.TTL("test:key1")
	assert.Greater(t, ttl, time.Duration(0))

	// A later increment must not refresh the expiry.
	mr.FastForward(30 * time.Second)
	_, err = s.IncrementWithExpiry(ctx, "key1", 1, time.Minute)
	require.NoError(t, err)
	assert.LessOrEqual(t, mr.TTL("test:key1"), 30*time.Second)
}

func TestRedisStore_Expiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.IncrementWithExpiry(ctx, "key1", 1, time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = s.Get(ctx, "key1")
	assert.True(t, IsKeyNotFound(err))
}

func TestRedisStore_Get_NotFound(t *testing.T) {
	s, _ := newTestRedisStore(t)

	_, err := s.Get(context.Background(), "nonexistent")
	assert.True(t, IsKeyNotFound(err))
}

func TestRedisStore_Delete(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.IncrementWithExpiry(ctx, "key1", 1, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "key1"))

	_, err = s.Get(ctx, "key1")
	assert.True(t, IsKeyNotFound(err))
}
