package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/middleware"
	"github.com/taskhub/taskhub/internal/model"
	"github.com/taskhub/taskhub/internal/store"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse is the body returned by register and login. The account's
// password digest and token list never serialize.
type authResponse struct {
	User  *model.Account `json:"user"`
	Token string         `json:"token"`
}

// Register creates an account and issues its first token.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondValidation(c, "Username and password are required")
		return
	}

	role := model.RoleUser
	if req.Role != "" {
		role = model.Role(req.Role)
		if !role.Valid() {
			respondValidation(c, "Invalid role")
			return
		}
	}

	digest, err := h.hasher.Hash(req.Password)
	if err != nil {
		respondValidation(c, "Invalid password")
		return
	}

	account := &model.Account{
		Username: req.Username,
		Password: digest,
		Role:     role,
		Created:  time.Now().UTC(),
	}
	if err := h.accounts.Create(c.Request.Context(), account); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			c.JSON(http.StatusConflict, gin.H{"message": "Username already taken"})
			return
		}
		h.respondInternal(c, err)
		return
	}

	raw, err := h.issueToken(c, account.ID)
	if err != nil {
		return
	}

	c.JSON(http.StatusCreated, authResponse{User: account, Token: raw})
}

// Login verifies credentials and issues a fresh token. Unknown usernames
// and wrong passwords produce the same response so the two are not
// distinguishable from outside.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body")
		return
	}

	account, err := h.accounts.FindByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
			return
		}
		h.respondInternal(c, err)
		return
	}
	if !h.hasher.Verify(req.Password, account.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
		return
	}

	raw, err := h.issueToken(c, account.ID)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, authResponse{User: account, Token: raw})
}

// CurrentUser returns the authenticated account.
func (h *Handlers) CurrentUser(c *gin.Context) {
	account, ok := middleware.AccountFrom(c)
	if !ok {
		respondUnauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account})
}

// issueToken signs a token for the account and records it on the account's
// issued list; only listed tokens authenticate. A response has already been
// written when the returned error is non-nil.
func (h *Handlers) issueToken(c *gin.Context, accountID string) (string, error) {
	raw, err := h.tokens.Issue(accountID)
	if err != nil {
		h.respondInternal(c, err)
		return "", err
	}
	if err := h.accounts.AppendToken(c.Request.Context(), accountID, raw); err != nil {
		h.respondInternal(c, err)
		return "", err
	}
	return raw, nil
}
