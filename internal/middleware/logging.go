package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/observability"
)

// RequestLogger logs one line per completed request and records the request
// counter metric.
func RequestLogger(logger observability.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		if metrics != nil {
			metrics.RecordRequest(c.Request.Method, path, status)
		}

		logger.WithContext(c.Request.Context()).Info("request completed",
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", status),
			observability.Duration("duration", duration),
			observability.String("client_ip", c.ClientIP()),
		)
	}
}
