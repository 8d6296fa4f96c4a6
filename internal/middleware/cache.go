package middleware

import (
	"bytes"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/cache"
	"github.com/taskhub/taskhub/internal/observability"
)

// maxCacheBodySize is the maximum response body size that will be buffered
// for caching. Larger responses are still sent to the client but are not
// stored.
const maxCacheBodySize = 10 << 20 // 10MB

// CacheConfig holds configuration for the cache-aside middleware.
type CacheConfig struct {
	// Cache is the backing store.
	Cache cache.Cache

	// TTL is the lifetime of stored responses.
	TTL time.Duration

	// Logger for cache events.
	Logger observability.Logger

	// Metrics records hits and misses.
	Metrics *observability.Metrics
}

// ResponseCache returns the cache-aside middleware for read endpoints.
//
// The middleware is mounted after the auth guard, and the key carries the
// acting principal's ID, so a cached response is only ever replayed to the
// authenticated caller it was produced for. On a hit the downstream handler
// is bypassed entirely; on a miss the outgoing response is captured and
// stored before it reaches the client. Backend failures degrade to
// pass-through.
func ResponseCache(cfg CacheConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	return func(c *gin.Context) {
		if cfg.Cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		principalID := ""
		if principal, ok := PrincipalFrom(c); ok {
			principalID = principal.ID
		}
		key := CacheKey(c.Request, principalID)

		if data, err := cfg.Cache.Get(c.Request.Context(), key); err == nil {
			if cfg.Metrics != nil {
				cfg.Metrics.RecordCacheHit()
			}
			cfg.Logger.WithContext(c.Request.Context()).Debug("cache hit",
				observability.String("key", key))

			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json", data)
			c.Abort()
			return
		}

		if cfg.Metrics != nil {
			cfg.Metrics.RecordCacheMiss()
		}

		recorder := &cacheBodyWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		status := recorder.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		if recorder.overflowed {
			cfg.Logger.Debug("response exceeded cache body limit, skipping store",
				observability.String("key", key))
			return
		}

		if err := cfg.Cache.Set(c.Request.Context(), key, recorder.body.Bytes(), cfg.TTL); err != nil {
			cfg.Logger.WithContext(c.Request.Context()).Debug("failed to store response in cache",
				observability.String("key", key),
				observability.Error(err))
		}
	}
}

// CacheKey builds a deterministic key from the request's method, path, and
// sorted query string, suffixed with the acting principal when present so
// per-caller responses never cross accounts.
func CacheKey(r *http.Request, principalID string) string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte(':')
	sb.WriteString(r.URL.Path)

	query := r.URL.Query()
	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('?')
		first := true
		for _, k := range keys {
			vals := query[k]
			sort.Strings(vals)
			for _, v := range vals {
				if !first {
					sb.WriteByte('&')
				}
				sb.WriteString(k)
				sb.WriteByte('=')
				sb.WriteString(v)
				first = false
			}
		}
	}

	if principalID != "" {
		sb.WriteString("|p:")
		sb.WriteString(principalID)
	}

	return sb.String()
}

// CacheKeyPrefix builds the invalidation prefix covering every cached
// variant of a GET path, across query strings and principals.
func CacheKeyPrefix(path string) string {
	return http.MethodGet + ":" + path
}

// cacheBodyWriter captures the response body for caching while writing it
// through to the client.
type cacheBodyWriter struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	overflowed bool
}

// Write captures the body and forwards it. Buffering stops once the body
// exceeds maxCacheBodySize, but the data still reaches the client.
func (w *cacheBodyWriter) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

// WriteString captures the body and forwards it.
func (w *cacheBodyWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *cacheBodyWriter) capture(b []byte) {
	if w.overflowed {
		return
	}
	if w.body.Len()+len(b) > maxCacheBodySize {
		w.overflowed = true
		w.body.Reset()
		return
	}
	w.body.Write(b)
}
