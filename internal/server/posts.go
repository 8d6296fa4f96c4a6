package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/middleware"
	"github.com/taskhub/taskhub/internal/model"
	"github.com/taskhub/taskhub/internal/store"
)

// postCachePaths are the GET paths invalidated when a post mutates.
var postCachePaths = []string{"/api/posts", "/api/post/"}

type createPostRequest struct {
	Text string `json:"text"`
}

type updatePostRequest struct {
	Text *string `json:"text"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// ListPosts returns a page of posts filtered by a case-insensitive search
// over the post text.
func (h *Handlers) ListPosts(c *gin.Context) {
	page, limit := pageParams(c)
	filter := store.PostFilter{Search: c.Query("search")}

	posts, err := h.posts.FindFiltered(c.Request.Context(), filter, (page-1)*limit, limit)
	if err != nil {
		h.respondInternal(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":  page,
		"count": len(posts),
		"posts": posts,
	})
}

// GetPost returns a single post by id.
func (h *Handlers) GetPost(c *gin.Context) {
	post, err := h.posts.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "Post")
			return
		}
		h.respondInternal(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost creates a post authored by the acting principal.
func (h *Handlers) CreatePost(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body")
		return
	}
	if req.Text == "" {
		respondValidation(c, "Text is required")
		return
	}

	now := time.Now().UTC()
	post := &model.Post{
		AuthorID: principal.ID,
		Text:     req.Text,
		Comments: []model.Comment{},
		Created:  now,
		Updated:  now,
	}
	if err := h.posts.Create(c.Request.Context(), post); err != nil {
		h.respondInternal(c, err)
		return
	}

	h.purgeCached(c.Request.Context(), postCachePaths...)
	c.JSON(http.StatusCreated, post)
}

// AddComment appends a comment to an existing post. Any authenticated
// principal may comment; ownership only gates mutation of the post itself.
func (h *Handlers) AddComment(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body")
		return
	}
	if req.Text == "" {
		respondValidation(c, "Text is required")
		return
	}

	comment := model.Comment{
		AuthorID: principal.ID,
		Text:     req.Text,
		Created:  time.Now().UTC(),
	}
	post, err := h.posts.AppendComment(c.Request.Context(), c.Param("id"), comment)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "Post")
			return
		}
		h.respondInternal(c, err)
		return
	}

	h.purgeCached(c.Request.Context(), postCachePaths...)
	c.JSON(http.StatusCreated, post)
}

// UpdatePost mutates a post the principal may touch; the two-step lookup
// keeps 404 and 401 distinguishable.
func (h *Handlers) UpdatePost(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	id := c.Param("id")
	if _, err := h.posts.FindByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "Post")
			return
		}
		h.respondInternal(c, err)
		return
	}

	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body")
		return
	}

	updated, err := h.posts.UpdateScoped(c.Request.Context(), authz.ScopeFor(principal, id), store.PostPatch{Text: req.Text})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondUnauthorized(c)
			return
		}
		h.respondInternal(c, err)
		return
	}

	h.purgeCached(c.Request.Context(), postCachePaths...)
	c.JSON(http.StatusOK, updated)
}

// DeletePost removes a post the principal may touch.
func (h *Handlers) DeletePost(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	id := c.Param("id")
	if _, err := h.posts.FindByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "Post")
			return
		}
		h.respondInternal(c, err)
		return
	}

	if err := h.posts.DeleteScoped(c.Request.Context(), authz.ScopeFor(principal, id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondUnauthorized(c)
			return
		}
		h.respondInternal(c, err)
		return
	}

	h.purgeCached(c.Request.Context(), postCachePaths...)
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully!"})
}
