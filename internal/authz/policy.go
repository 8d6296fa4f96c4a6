// Package authz implements the per-resource ownership policy.
//
// The policy is evaluated inside mutating handlers after the auth guard has
// run, because it needs the target resource's owner field. Handlers follow a
// two-step sequence: fetch the resource unconditionally by id (absent means
// not-found), then attempt the mutation scoped by ownership. A scoped
// mutation that affects nothing after the fetch succeeded means the caller
// lacks ownership.
package authz

import "github.com/taskhub/taskhub/internal/model"

// Authorize reports whether the principal may mutate a resource owned by
// ownerID. Admins may mutate anything; everyone else only their own.
func Authorize(p model.Principal, ownerID string) bool {
	return p.IsAdmin() || p.ID == ownerID
}

// Scope is the ownership clause applied to scoped update and delete
// operations. A zero OwnerID means the clause is unrestricted (admin).
type Scope struct {
	ID      string
	OwnerID string
}

// ScopeFor builds the mutation scope for the principal: admins get an
// id-only scope, other principals get an id-and-owner scope so the store
// silently affects nothing when they do not own the target.
func ScopeFor(p model.Principal, resourceID string) Scope {
	if p.IsAdmin() {
		return Scope{ID: resourceID}
	}
	return Scope{ID: resourceID, OwnerID: p.ID}
}
