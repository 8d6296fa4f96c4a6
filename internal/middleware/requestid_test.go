package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/taskhub/taskhub/internal/observability"
)

func TestRequestID_Generated(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())

	var fromContext string
	engine.GET("/", func(c *gin.Context) {
		fromContext = observability.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, fromContext)
}

func TestRequestID_ClientSuppliedKept(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id-42")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, "client-id-42", w.Header().Get(RequestIDHeader))
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery(observability.NopLogger()))
	engine.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Something went wrong"}`, w.Body.String())
}
