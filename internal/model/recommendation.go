package model

import "time"

// Genre is one of a fixed, closed set of media categories.
type Genre string

const (
	GenreHorror      Genre = "horror"
	GenreAction      Genre = "action"
	GenreComedy      Genre = "comedy"
	GenreThriller    Genre = "thriller"
	GenreSciFi       Genre = "sci-fi"
	GenreDrama       Genre = "drama"
	GenreRomance     Genre = "romance"
	GenreDocumentary Genre = "documentary"
)

// Genres lists every valid genre in display order.
var Genres = []Genre{
	GenreHorror,
	GenreAction,
	GenreComedy,
	GenreThriller,
	GenreSciFi,
	GenreDrama,
	GenreRomance,
	GenreDocumentary,
}

// Valid reports whether g belongs to the closed set.
func (g Genre) Valid() bool {
	for _, known := range Genres {
		if g == known {
			return true
		}
	}
	return false
}

// Recommendation is a user-submitted media recommendation.
//
// OwnerID references User.ID and never changes after creation. IsStaffPick
// starts false and can only be flipped to true. Link is empty when absent.
type Recommendation struct {
	ID          string    `json:"id"          db:"id"            bson:"_id"`
	OwnerID     string    `json:"ownerId"     db:"owner_id"      bson:"ownerId"`
	Title       string    `json:"title"       db:"title"         bson:"title"`
	Genre       Genre     `json:"genre"       db:"genre"         bson:"genre"`
	Link        string    `json:"link,omitempty" db:"link"       bson:"link,omitempty"`
	Blurb       string    `json:"blurb"       db:"blurb"         bson:"blurb"`
	IsStaffPick bool      `json:"isStaffPick" db:"is_staff_pick" bson:"isStaffPick"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"    bson:"createdAt"`
}

// RecommendationView is the display form returned by list operations: the
// stored record plus denormalized owner fields and, when the caller is known,
// the caller's role and an ownership flag.
//
// CallerRole and IsOwner are hints for the presentation layer only. Every
// mutation re-checks authorization on the server.
type RecommendationView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Genre            Genre     `json:"genre"`
	Link             string    `json:"link,omitempty"`
	Blurb            string    `json:"blurb"`
	IsStaffPick      bool      `json:"isStaffPick"`
	CreatedAt        time.Time `json:"createdAt"`
	OwnerDisplayName string    `json:"ownerDisplayName"`
	OwnerAvatarURL   string    `json:"ownerAvatarUrl,omitempty"`
	CallerRole       Role      `json:"callerRole,omitempty"`
	IsOwner          bool      `json:"isOwner"`
}
