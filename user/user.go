// Package user maintains the live directory of known contacts: a
// defaulted, support-merged view of the users collection with search and
// recommendation helpers on top.
package user

import (
	"net/url"
	"strings"
	"time"

	"github.com/klipach/vchat/store"
)

const (
	// SupportUserID is the well-known id of the VChat support contact.
	SupportUserID = "vchat-support-user"

	// Collection is the Firestore collection holding user profiles.
	Collection = "users"

	defaultName   = "Unknown User"
	defaultStatus = "Available"

	supportName   = "VChat Support"
	supportEmail  = "support@vchat.com"
	supportAvatar = "https://ui-avatars.com/api/?name=VChat+Support&background=5856d6&color=fff"
)

type User struct {
	ID        string
	Name      string
	Email     string
	Avatar    string
	Status    string
	CreatedAt time.Time
}

// AvatarURL builds the generated placeholder avatar for a display name.
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name)
}

// SupportUser returns the canonical support contact record.
func SupportUser() User {
	return User{
		ID:     SupportUserID,
		Name:   supportName,
		Email:  supportEmail,
		Avatar: supportAvatar,
		Status: defaultStatus,
	}
}

// BootstrapUsers is the hardcoded directory shown while the remote
// directory is empty or still loading.
func BootstrapUsers() []User {
	return []User{
		SupportUser(),
		{
			ID:     "sample-user-john",
			Name:   "John Doe",
			Email:  "john@example.com",
			Avatar: AvatarURL("John Doe"),
			Status: defaultStatus,
		},
		{
			ID:     "sample-user-jane",
			Name:   "Jane Smith",
			Email:  "jane@example.com",
			Avatar: AvatarURL("Jane Smith"),
			Status: defaultStatus,
		},
	}
}

// FromDocument decodes a stored user, filling the blanks every caller
// relies on: name, placeholder avatar and status.
func FromDocument(doc store.Document) User {
	u := User{
		ID:     doc.ID,
		Name:   str(doc.Data["name"]),
		Email:  str(doc.Data["email"]),
		Avatar: str(doc.Data["avatar"]),
		Status: str(doc.Data["status"]),
	}
	if createdAt, ok := doc.Data["createdAt"].(time.Time); ok {
		u.CreatedAt = createdAt
	}
	if strings.TrimSpace(u.Name) == "" {
		u.Name = defaultName
	}
	if u.Avatar == "" {
		u.Avatar = AvatarURL(u.Name)
	}
	if u.Status == "" {
		u.Status = defaultStatus
	}
	return u
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
