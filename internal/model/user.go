// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is a user's curation level. Only the identity store's operators can
// grant RoleAdmin; lifecycle sync never changes it.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// IsAdmin reports whether the role carries curation rights.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// User represents an account mirrored from the external identity provider.
//
// ExternalID is the provider's stable subject identifier and is UNIQUE in
// every store: exactly one User exists per ExternalID. ID is our own xid so
// recommendations never reference a third-party key directly.
//
// AvatarURL uses an empty string for "no avatar" rather than a pointer.
type User struct {
	ID          string    `json:"id"          db:"id"           bson:"_id"`
	ExternalID  string    `json:"externalId"  db:"external_id"  bson:"externalId"`
	Email       string    `json:"email"       db:"email"        bson:"email"`
	DisplayName string    `json:"displayName" db:"display_name" bson:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty" db:"avatar_url" bson:"avatarUrl,omitempty"`
	Role        Role      `json:"role"        db:"role"         bson:"role"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"   bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"   bson:"updatedAt"`
}

// Profile is the provider-supplied part of a User: everything identity
// sync may write. It never carries a role.
type Profile struct {
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
}
