package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/observability"
)

// scanBatchSize is the COUNT hint for SCAN during prefix invalidation.
const scanBatchSize = 100

// redisCache implements a Redis-backed cache. All operations go through a
// circuit breaker: when the backend is unreachable the breaker opens and
// lookups degrade to ErrConnectionFailed, which the middleware treats as a
// miss, so a Redis outage never takes the read path down with it.
type redisCache struct {
	logger    observability.Logger
	client    *redis.Client
	keyPrefix string
	breaker   *gobreaker.CircuitBreaker
}

// newRedisCache creates a new Redis-backed cache.
func newRedisCache(cfg *config.CacheConfig, logger observability.Logger) (*redisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	client := redis.NewClient(opts)

	c := &redisCache{
		logger:    logger,
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cache-redis",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state change",
				observability.String("breaker", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	logger.Info("redis cache initialized",
		observability.String("addr", opts.Addr),
		observability.String("keyPrefix", cfg.KeyPrefix))

	return c, nil
}

// Get retrieves a value from the cache.
func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// A miss is a healthy outcome, not a breaker failure.
				return nil, nil
			}
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, c.mapBackendError(err)
	}
	if result == nil {
		return nil, ErrCacheMiss
	}
	return result.([]byte), nil
}

// Set stores a value in the cache with the given TTL.
func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err()
	})
	if err != nil {
		return c.mapBackendError(err)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Del(ctx, c.keyPrefix+key).Err()
	})
	if err != nil {
		return c.mapBackendError(err)
	}
	return nil
}

// DeletePrefix removes every entry whose key starts with prefix using
// SCAN + DEL, so invalidation never blocks the server.
func (c *redisCache) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var cursor uint64
		pattern := c.keyPrefix + prefix + "*"
		for {
			keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
			if err != nil {
				return nil, err
			}
			if len(keys) > 0 {
				if err := c.client.Del(ctx, keys...).Err(); err != nil {
					return nil, err
				}
			}
			if next == 0 {
				return nil, nil
			}
			cursor = next
		}
	})
	if err != nil {
		return c.mapBackendError(err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *redisCache) Close() error {
	return c.client.Close()
}

// mapBackendError normalizes breaker and transport failures.
func (c *redisCache) mapBackendError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrConnectionFailed
	}
	c.logger.Debug("redis cache operation failed", observability.Error(err))
	return ErrConnectionFailed
}
