// Package store defines the data-access contracts consumed by the handlers
// and provides in-memory and Postgres implementations.
//
// The scoped mutation operations carry an ownership clause: they affect at
// most the single matching id and report ErrNotFound when the clause
// excludes the match, which is how handlers distinguish forbidden from
// not-found without re-deriving role filters inline.
package store

import (
	"context"
	"errors"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/model"
)

// Store errors.
var (
	// ErrNotFound indicates that no record matched the lookup or scope.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateUsername indicates a registration with a taken username.
	ErrDuplicateUsername = errors.New("username already taken")
)

// AccountStore is the account collaborator consumed by the auth pipeline.
type AccountStore interface {
	// FindByUsername returns the account with the given username.
	FindByUsername(ctx context.Context, username string) (*model.Account, error)

	// FindByIDAndToken returns the account only when the token is present
	// in its issued-token list. A valid token the account no longer lists
	// yields ErrNotFound.
	FindByIDAndToken(ctx context.Context, id, token string) (*model.Account, error)

	// Create persists a new account, assigning its ID when empty.
	// Username uniqueness is enforced here.
	Create(ctx context.Context, account *model.Account) error

	// AppendToken appends a token to the account's issued-token list.
	AppendToken(ctx context.Context, accountID, token string) error
}

// TodoFilter selects todos for listing.
type TodoFilter struct {
	// OwnerID restricts the listing to one owner when non-empty.
	OwnerID string

	// Search is a case-insensitive substring match over title and
	// description.
	Search string
}

// TodoPatch is a partial update; nil fields are left unchanged.
type TodoPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// TodoStore is the todo resource collaborator.
type TodoStore interface {
	FindByID(ctx context.Context, id string) (*model.Todo, error)
	FindFiltered(ctx context.Context, filter TodoFilter, offset, limit int) ([]model.Todo, error)
	Create(ctx context.Context, todo *model.Todo) error

	// UpdateScoped applies the patch to the todo matching the scope and
	// returns the updated record, or ErrNotFound when the scope's
	// ownership clause excluded the match.
	UpdateScoped(ctx context.Context, scope authz.Scope, patch TodoPatch) (*model.Todo, error)

	// DeleteScoped removes the todo matching the scope, or returns
	// ErrNotFound when the scope excluded the match.
	DeleteScoped(ctx context.Context, scope authz.Scope) error
}

// PostFilter selects posts for listing.
type PostFilter struct {
	// Search is a case-insensitive substring match over the post text.
	Search string
}

// PostPatch is a partial update; nil fields are left unchanged.
type PostPatch struct {
	Text *string
}

// PostStore is the post resource collaborator.
type PostStore interface {
	FindByID(ctx context.Context, id string) (*model.Post, error)
	FindFiltered(ctx context.Context, filter PostFilter, offset, limit int) ([]model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	UpdateScoped(ctx context.Context, scope authz.Scope, patch PostPatch) (*model.Post, error)
	DeleteScoped(ctx context.Context, scope authz.Scope) error

	// AppendComment appends a comment to the post and returns the updated
	// record, or ErrNotFound when the post does not exist.
	AppendComment(ctx context.Context, postID string, comment model.Comment) (*model.Post, error)
}
