package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/model"
)

func TestAuthorize(t *testing.T) {
	owner := &model.User{ID: "u1", Role: model.RoleUser}
	other := &model.User{ID: "u2", Role: model.RoleUser}
	admin := &model.User{ID: "a1", Role: model.RoleAdmin}
	rec := &model.Recommendation{ID: "r1", OwnerID: "u1"}

	tests := []struct {
		name      string
		caller    *model.User
		action    Action
		target    *model.Recommendation
		wantErr   error
		wantScope Scope
	}{
		{name: "anonymous list", caller: nil, action: ActionList},
		{name: "user list", caller: owner, action: ActionList},
		{name: "admin list", caller: admin, action: ActionList},

		{name: "anonymous list mine", caller: nil, action: ActionListMine, wantErr: apperror.ErrUnauthenticated},
		{name: "user list mine is scoped", caller: owner, action: ActionListMine, wantScope: Scope{OwnerID: "u1"}},
		{name: "admin list mine sees all", caller: admin, action: ActionListMine},

		{name: "anonymous add", caller: nil, action: ActionAdd, wantErr: apperror.ErrUnauthenticated},
		{name: "user add", caller: owner, action: ActionAdd},
		{name: "admin add", caller: admin, action: ActionAdd},

		{name: "anonymous remove", caller: nil, action: ActionRemove, target: rec, wantErr: apperror.ErrUnauthenticated},
		{name: "owner remove", caller: owner, action: ActionRemove, target: rec},
		{name: "non-owner remove", caller: other, action: ActionRemove, target: rec, wantErr: apperror.ErrForbidden},
		{name: "admin remove", caller: admin, action: ActionRemove, target: rec},

		{name: "anonymous staff pick", caller: nil, action: ActionMarkStaffPick, target: rec, wantErr: apperror.ErrUnauthenticated},
		{name: "owner staff pick", caller: owner, action: ActionMarkStaffPick, target: rec, wantErr: apperror.ErrForbidden},
		{name: "non-owner staff pick", caller: other, action: ActionMarkStaffPick, target: rec, wantErr: apperror.ErrForbidden},
		{name: "admin staff pick", caller: admin, action: ActionMarkStaffPick, target: rec},

		{name: "unknown action", caller: admin, action: Action("rename"), wantErr: apperror.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.caller, tt.action, tt.target)

			if tt.wantErr != nil {
				assert.False(t, d.Allowed)
				assert.True(t, errors.Is(d.Err(), tt.wantErr), "Err() = %v, want %v", d.Err(), tt.wantErr)
				return
			}
			assert.True(t, d.Allowed)
			assert.NoError(t, d.Err())
			assert.Equal(t, tt.wantScope, d.Scope)
		})
	}
}

func TestScopeAll(t *testing.T) {
	assert.True(t, Scope{}.All())
	assert.False(t, Scope{OwnerID: "u1"}.All())
}
