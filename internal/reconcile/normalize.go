package reconcile

import (
	"fmt"
	"strings"
)

// RawUser is the shape of one record returned by the IdP admin client's
// user-listing endpoint (see internal/idp). Normalize maps this to a
// SyncUser or drops it with an error entry.
type RawUser struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Enabled   bool
}

// Normalize converts raw IdP user records into canonical SyncUser
// records. Records without an email are dropped; an error entry
// referencing the record's ProviderID is appended to errs instead.
func Normalize(raw []RawUser) (users []SyncUser, errs []string) {
	users = make([]SyncUser, 0, len(raw))

	for _, r := range raw {
		email := strings.TrimSpace(r.Email)
		if email == "" {
			errs = append(errs, fmt.Sprintf("dropping user %s: no email address", r.ID))
			continue
		}

		users = append(users, SyncUser{
			ProviderID: r.ID,
			Email:      email,
			Name:       displayName(r),
			AvatarURL:  "",
		})
	}

	return users, errs
}

// displayName composes a display name in priority order: "first last" if
// both present, else first, else last, else username, else email, else
// the literal "Unknown User".
func displayName(r RawUser) string {
	first := strings.TrimSpace(r.FirstName)
	last := strings.TrimSpace(r.LastName)

	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case strings.TrimSpace(r.Username) != "":
		return strings.TrimSpace(r.Username)
	case strings.TrimSpace(r.Email) != "":
		return strings.TrimSpace(r.Email)
	default:
		return "Unknown User"
	}
}
