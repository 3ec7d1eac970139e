// Package repository declares the storage contracts the service layer depends
// on. Implementations live in sub-packages (sqlite, mongo).
//
// Every mutation is a single conditional store operation, so a mutation is
// either applied completely or not at all.
package repository

import (
	"context"

	"github.com/sakif/hypeshelf/internal/model"
)

// PageSize is the fixed number of recommendations a list call returns.
const PageSize = 50

// ListOptions scopes a recommendation query. Zero values mean "no filter".
type ListOptions struct {
	Genre   model.Genre // restrict to one genre
	OwnerID string      // restrict to one owner
	Limit   int         // clamped to 1..PageSize
}

// EffectiveLimit clamps Limit into 1..PageSize.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 || o.Limit > PageSize {
		return PageSize
	}
	return o.Limit
}

// UserRepository persists users keyed by their external identity.
type UserRepository interface {
	// UpsertByExternalID creates the user with RoleUser when ExternalID is
	// unknown, otherwise refreshes Email, DisplayName and AvatarURL and leaves
	// Role alone. On return user holds the stored record.
	UpsertByExternalID(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	// GetUsersByIDs fetches every listed user in one round trip. Unknown ids
	// are simply absent from the result.
	GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
	// DeleteByExternalID reports whether a user was removed.
	DeleteByExternalID(ctx context.Context, externalID string) (bool, error)
	// SetRole is an operator action reached through IdentityService.Promote;
	// no API route calls it.
	SetRole(ctx context.Context, id string, role model.Role) error
}

// RecommendationRepository persists recommendations.
type RecommendationRepository interface {
	Create(ctx context.Context, rec *model.Recommendation) error
	GetByID(ctx context.Context, id string) (*model.Recommendation, error)
	// List returns records newest first, ties broken by insertion order.
	List(ctx context.Context, opts ListOptions) ([]model.Recommendation, error)
	Delete(ctx context.Context, id string) error
	// MarkStaffPick sets IsStaffPick to true. It is a no-op on records that
	// are already picked and returns NotFound when id does not resolve.
	MarkStaffPick(ctx context.Context, id string) error
}
