package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/ratelimit"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter to use.
	Limiter ratelimit.Limiter

	// KeyFunc extracts the rate limit key from the request. Defaults to
	// the client network address.
	KeyFunc ratelimit.KeyFunc

	// Logger for rate limit events.
	Logger observability.Logger

	// Metrics records rejected requests.
	Metrics *observability.Metrics

	// SkipPaths is a list of paths exempt from rate limiting.
	SkipPaths []string
}

// RateLimit returns a middleware that applies rate limiting per client
// address. It runs before authentication and is independent of it; the
// (max+1)th request inside a window is rejected without touching the rest
// of the pipeline.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewNoopLimiter()
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ratelimit.IPKeyFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c.Request)

		result, err := cfg.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Fail open: a broken counter store must not take the API down.
			cfg.Logger.WithContext(c.Request.Context()).Error("rate limit check failed",
				observability.String("key", key),
				observability.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(result.ResetAfter).Unix(), 10))

		if !result.Allowed {
			if cfg.Metrics != nil {
				cfg.Metrics.RecordRateLimitHit(c.Request.URL.Path)
			}
			cfg.Logger.WithContext(c.Request.Context()).Warn("rate limit exceeded",
				observability.String("key", key),
				observability.String("path", c.Request.URL.Path))

			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
