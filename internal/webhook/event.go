package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/hypeshelf/internal/model"
)

// fallbackDisplayName is used when the provider has neither a name nor a
// username for the user.
const fallbackDisplayName = "User"

// Event is a provider lifecycle event.
type Event struct {
	Type string   `json:"type"`
	Data UserData `json:"data"`
}

// UserData is the provider's user object. Only the fields mirrored into the
// user store are decoded.
type UserData struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	Username              string         `json:"username"`
	ImageURL              string         `json:"image_url"`
}

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// ParseEvent decodes a verified payload. Every event must name its type and
// the user it concerns.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("webhook: decoding event: %w", err)
	}
	if ev.Type == "" {
		return nil, errors.New("webhook: event has no type")
	}
	if ev.Data.ID == "" {
		return nil, errors.New("webhook: event has no user id")
	}
	return &ev, nil
}

// Profile maps the provider user to the fields identity sync stores.
//
//   - email: the primary address, else the first one, else empty
//   - display name: "first last" trimmed, else username, else "User"
func (d UserData) Profile() model.Profile {
	return model.Profile{
		ExternalID:  d.ID,
		Email:       d.primaryEmail(),
		DisplayName: d.displayName(),
		AvatarURL:   d.ImageURL,
	}
}

func (d UserData) primaryEmail() string {
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (d UserData) displayName() string {
	if name := strings.TrimSpace(d.FirstName + " " + d.LastName); name != "" {
		return name
	}
	if d.Username != "" {
		return d.Username
	}
	return fallbackDisplayName
}
