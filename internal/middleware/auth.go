// Package middleware provides the gin middleware pipeline: request ID,
// logging, recovery, rate limiting, bearer authentication, and the
// cache-aside response layer.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/auth/token"
	"github.com/taskhub/taskhub/internal/model"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/store"
)

// Context keys for authentication state.
const (
	principalKey = "principal"
	accountKey   = "account"
)

// Authentication failure bodies. The expired message is distinct so clients
// can prompt for re-login instead of treating the token as garbage.
const (
	msgAuthFailed   = "Authentication Failed!"
	msgTokenExpired = "Token Expired!"
)

// AuthGuard authenticates bearer tokens and resolves the acting principal.
//
// A token authenticates only when its signature and expiry check out AND it
// is still present in the owning account's issued-token list, so a record
// that was cleared manually no longer authenticates even if the signature
// remains valid.
type AuthGuard struct {
	tokens   *token.Service
	accounts store.AccountStore
	logger   observability.Logger
	metrics  *observability.Metrics
}

// NewAuthGuard creates an auth guard middleware.
func NewAuthGuard(tokens *token.Service, accounts store.AccountStore, logger observability.Logger, metrics *observability.Metrics) *AuthGuard {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &AuthGuard{
		tokens:   tokens,
		accounts: accounts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Handler returns the gin middleware. Authentication failures are terminal
// for the request; the handler chain is aborted with exactly one response.
func (g *AuthGuard) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			g.reject(c, "missing_credential", msgAuthFailed)
			return
		}

		accountID, err := g.tokens.Verify(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				g.reject(c, "expired", msgTokenExpired)
				return
			}
			g.reject(c, "invalid", msgAuthFailed)
			return
		}

		account, err := g.accounts.FindByIDAndToken(c.Request.Context(), accountID, raw)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.reject(c, "unlisted_token", msgAuthFailed)
				return
			}
			g.logger.WithContext(c.Request.Context()).Error("account lookup failed",
				observability.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"message": "Something went wrong"})
			return
		}

		principal := model.Principal{ID: account.ID, Role: account.Role}
		c.Set(principalKey, principal)
		c.Set(accountKey, account)
		c.Next()
	}
}

// reject aborts the request with a 401 and records the failure.
func (g *AuthGuard) reject(c *gin.Context, reason, message string) {
	if g.metrics != nil {
		g.metrics.RecordAuthFailure(reason)
	}
	g.logger.WithContext(c.Request.Context()).Debug("authentication rejected",
		observability.String("reason", reason),
		observability.String("path", c.Request.URL.Path))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// bearerToken extracts the credential from an Authorization header value.
// A missing header or any scheme other than Bearer is a failure, not a
// panic.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// PrincipalFrom returns the authenticated principal attached by the guard.
func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return model.Principal{}, false
	}
	principal, ok := v.(model.Principal)
	return principal, ok
}

// AccountFrom returns the authenticated account attached by the guard.
func AccountFrom(c *gin.Context) (*model.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil, false
	}
	account, ok := v.(*model.Account)
	return account, ok
}
