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

type createTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// ListTodos returns a page of todos, optionally filtered by owner and a
// case-insensitive search over title and description.
func (h *Handlers) ListTodos(c *gin.Context) {
	page, limit := pageParams(c)
	filter := store.TodoFilter{
		OwnerID: c.Query("userId"),
		Search:  c.Query("search"),
	}

	todos, err := h.todos.FindFiltered(c.Request.Context(), filter, (page-1)*limit, limit)
	if err != nil {
		h.respondInternal(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":  page,
		"count": len(todos),
		"todos": todos,
	})
}

// CreateTodo creates a todo owned by the acting principal.
func (h *Handlers) CreateTodo(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body")
		return
	}
	if req.Title == "" {
		respondValidation(c, "Title is required")
		return
	}

	now := time.Now().UTC()
	todo := &model.Todo{
		OwnerID:     principal.ID,
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		Created:     now,
		Updated:     now,
	}
	if err := h.todos.Create(c.Request.Context(), todo); err != nil {
		h.respondInternal(c, err)
		return
	}

	h.purgeCached(c.Request.Context(), "/api/todos")
	c.JSON(http.StatusCreated, todo)
}

// UpdateTodo mutates a todo the principal may touch. The lookup and the
// scoped mutation are separate steps so a missing todo reads as 404 while
// an existing todo owned by someone else reads as 401.
func (h *Handlers) UpdateTodo(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	id := c.Param("id")
	if _, err := h.todos.FindByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "Todo")
			return
		}
		h.respondInternal(c, err)
		return
	}

	var req updateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body")
		return
	}

	patch := store.TodoPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	updated, err := h.todos.UpdateScoped(c.Request.Context(), authz.ScopeFor(principal, id), patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondUnauthorized(c)
			return
		}
		h.respondInternal(c, err)
		return
	}

	h.purgeCached(c.Request.Context(), "/api/todos")
	c.JSON(http.StatusOK, updated)
}

// DeleteTodo removes a todo the principal may touch, with the same
// not-found versus unauthorized split as UpdateTodo.
func (h *Handlers) DeleteTodo(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	id := c.Param("id")
	if _, err := h.todos.FindByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "Todo")
			return
		}
		h.respondInternal(c, err)
		return
	}

	if err := h.todos.DeleteScoped(c.Request.Context(), authz.ScopeFor(principal, id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondUnauthorized(c)
			return
		}
		h.respondInternal(c, err)
		return
	}

	h.purgeCached(c.Request.Context(), "/api/todos")
	c.JSON(http.StatusOK, gin.H{"message": "Todo deleted successfully!"})
}
