// Package model defines the domain records shared by the stores, the
// middleware pipeline, and the HTTP handlers.
package model

import "time"

// Role is the authorization role attached to an account.
type Role string

const (
	// RoleAdmin may mutate any resource regardless of ownership.
	RoleAdmin Role = "admin"

	// RoleUser may only mutate resources it owns.
	RoleUser Role = "user"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Account is a registered user. Password holds the bcrypt digest and is
// never serialized outward. Tokens is the ordered list of issued bearer
// tokens; it is appended on every successful registration and login and is
// never pruned.
type Account struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Password string    `json:"-"`
	Role     Role      `json:"role"`
	Tokens   []string  `json:"-"`
	Created  time.Time `json:"createdAt"`
}

// Principal is the request-scoped projection of an authenticated account.
// It lives in the request context for exactly one request.
type Principal struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Todo is a single task owned by an account.
type Todo struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Created     time.Time `json:"createdAt"`
	Updated     time.Time `json:"updatedAt"`
}

// Comment is a single comment attached to a post.
type Comment struct {
	AuthorID string    `json:"author"`
	Text     string    `json:"text"`
	Created  time.Time `json:"createdAt"`
}

// Post is a text post owned by its author.
type Post struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"author"`
	Text     string    `json:"text"`
	Comments []Comment `json:"comments"`
	Created  time.Time `json:"createdAt"`
	Updated  time.Time `json:"updatedAt"`
}
