package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementWithExpiryScript atomically increments a counter and sets the
// expiration when the key is created.
// KEYS[1] = key, ARGV[1] = delta, ARGV[2] = expiration in seconds.
var incrementWithExpiryScript = redis.NewScript(`
	local current = redis.call('INCRBY', KEYS[1], ARGV[1])
	if current == tonumber(ARGV[1]) then
		redis.call('EXPIRE', KEYS[1], ARGV[2])
	end
	return current
`)

// RedisStore implements Store using Redis, giving processes that share the
// backend a single consistent view of the counters.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store from a connection URL.
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		prefix: prefix,
	}, nil
}

// NewRedisStoreWithClient creates a Redis-backed store from an existing
// client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, &ErrKeyNotFound{Key: key}
		}
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// IncrementWithExpiry implements Store.
func (s *RedisStore) IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	seconds := int64(expiration / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return incrementWithExpiryScript.Run(
		ctx, s.client, []string{s.prefix + key}, delta, seconds,
	).Int64()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
