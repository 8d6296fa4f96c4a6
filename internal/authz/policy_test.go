package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskhub/taskhub/internal/model"
)

func TestAuthorize(t *testing.T) {
	admin := model.Principal{ID: "admin-1", Role: model.RoleAdmin}
	owner := model.Principal{ID: "user-1", Role: model.RoleUser}
	other := model.Principal{ID: "user-2", Role: model.RoleUser}

	tests := []struct {
		name      string
		principal model.Principal
		ownerID   string
		want      bool
	}{
		{"admin may touch anything", admin, "user-1", true},
		{"admin may touch own", admin, "admin-1", true},
		{"owner may touch own", owner, "user-1", true},
		{"non-owner may not touch", other, "user-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.principal, tt.ownerID))
		})
	}
}

func TestScopeFor(t *testing.T) {
	admin := model.Principal{ID: "admin-1", Role: model.RoleAdmin}
	user := model.Principal{ID: "user-1", Role: model.RoleUser}

	adminScope := ScopeFor(admin, "todo-1")
	assert.Equal(t, "todo-1", adminScope.ID)
	assert.Empty(t, adminScope.OwnerID, "admin scope carries no ownership clause")

	userScope := ScopeFor(user, "todo-1")
	assert.Equal(t, "todo-1", userScope.ID)
	assert.Equal(t, "user-1", userScope.OwnerID)
}
