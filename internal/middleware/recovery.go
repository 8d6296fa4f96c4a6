package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/observability"
)

// Recovery converts panics in downstream handlers into a generic 500
// response so internal failures never leak details to the client.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(c.Request.Context()).Error("panic recovered",
					observability.Any("panic", r),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					gin.H{"message": "Something went wrong"})
			}
		}()
		c.Next()
	}
}
