package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is one entry of the route table. Routes are supplied to the server
// as data; the server attaches the guard and cache middleware based on the
// flags, so handlers never mount their own pipeline.
type Route struct {
	// Method is the HTTP method.
	Method string

	// Path is the gin route pattern.
	Path string

	// Handler is the terminal handler.
	Handler gin.HandlerFunc

	// Guarded mounts the bearer auth guard before the handler.
	Guarded bool

	// Cached mounts the cache-aside middleware after the guard. Only
	// meaningful for GET routes.
	Cached bool
}

// Routes returns the API route table.
func Routes(h *Handlers) []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/user", Handler: h.Register},
		{Method: http.MethodPost, Path: "/api/login", Handler: h.Login},
		{Method: http.MethodGet, Path: "/api/user", Handler: h.CurrentUser, Guarded: true, Cached: true},

		{Method: http.MethodGet, Path: "/api/todos", Handler: h.ListTodos, Guarded: true, Cached: true},
		{Method: http.MethodPost, Path: "/api/todo", Handler: h.CreateTodo, Guarded: true},
		{Method: http.MethodPut, Path: "/api/todo/:id", Handler: h.UpdateTodo, Guarded: true},
		{Method: http.MethodDelete, Path: "/api/todo/:id", Handler: h.DeleteTodo, Guarded: true},

		{Method: http.MethodGet, Path: "/api/posts", Handler: h.ListPosts, Guarded: true, Cached: true},
		{Method: http.MethodGet, Path: "/api/post/:id", Handler: h.GetPost, Guarded: true, Cached: true},
		{Method: http.MethodPost, Path: "/api/post", Handler: h.CreatePost, Guarded: true},
		{Method: http.MethodPost, Path: "/api/post/:id/comments", Handler: h.AddComment, Guarded: true},
		{Method: http.MethodPut, Path: "/api/post/:id", Handler: h.UpdatePost, Guarded: true},
		{Method: http.MethodDelete, Path: "/api/post/:id", Handler: h.DeletePost, Guarded: true},
	}
}
