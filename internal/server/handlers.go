// Package server assembles the HTTP surface: the route table, the resource
// handlers, and the server lifecycle.
package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/auth/password"
	"github.com/taskhub/taskhub/internal/auth/token"
	"github.com/taskhub/taskhub/internal/cache"
	"github.com/taskhub/taskhub/internal/middleware"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/store"
)

// Pagination defaults for list endpoints.
const (
	defaultPage  = 1
	defaultLimit = 10
)

// Handlers carries the collaborators shared by all resource handlers.
type Handlers struct {
	accounts store.AccountStore
	todos    store.TodoStore
	posts    store.PostStore
	hasher   *password.Hasher
	tokens   *token.Service
	cache    cache.Cache
	logger   observability.Logger
}

// NewHandlers creates the handler set. The cache may be nil when response
// caching is disabled; write handlers then skip invalidation.
func NewHandlers(
	accounts store.AccountStore,
	todos store.TodoStore,
	posts store.PostStore,
	hasher *password.Hasher,
	tokens *token.Service,
	responseCache cache.Cache,
	logger observability.Logger,
) *Handlers {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handlers{
		accounts: accounts,
		todos:    todos,
		posts:    posts,
		hasher:   hasher,
		tokens:   tokens,
		cache:    responseCache,
		logger:   logger,
	}
}

// respondInternal hides store failures behind a generic body; the detail
// goes to the log only.
func (h *Handlers) respondInternal(c *gin.Context, err error) {
	h.logger.WithContext(c.Request.Context()).Error("handler failed",
		observability.String("method", c.Request.Method),
		observability.String("path", c.Request.URL.Path),
		observability.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized!"})
}

func respondNotFound(c *gin.Context, kind string) {
	c.JSON(http.StatusNotFound, gin.H{"message": kind + " not found"})
}

func respondValidation(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}

// pageParams reads page/limit query parameters, falling back to defaults
// for absent or nonsensical values.
func pageParams(c *gin.Context) (page, limit int) {
	page = defaultPage
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	limit = defaultLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	return page, limit
}

// purgeCached drops every cached variant under the given GET paths. Runs
// after a successful mutation; a failed purge is logged and otherwise
// ignored since entries still expire by TTL.
func (h *Handlers) purgeCached(ctx context.Context, paths ...string) {
	if h.cache == nil {
		return
	}
	for _, p := range paths {
		if err := h.cache.DeletePrefix(ctx, middleware.CacheKeyPrefix(p)); err != nil {
			h.logger.WithContext(ctx).Debug("cache purge failed",
				observability.String("path", p),
				observability.Error(err))
		}
	}
}
