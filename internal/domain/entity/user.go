package entity

import "fmt"

// DefaultAvatarRef is used when the directory returns no avatar.
const DefaultAvatarRef = "/chat_page/assets/images/users/user-default.png"

type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	AvatarRef   string `json:"avatar,omitempty"`
}

// FallbackIdentity stands in for an id the directory could not resolve.
func FallbackIdentity(id string) *Identity {
	return &Identity{
		ID:          id,
		DisplayName: fmt.Sprintf("User %s", id),
		AvatarRef:   DefaultAvatarRef,
	}
}

// UserRecord is one element of the batch identity response.
type UserRecord struct {
	UserID UserRef `json:"userId"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

func (r UserRecord) Identity() *Identity {
	id := &Identity{
		ID:          string(r.UserID),
		DisplayName: r.Name,
		AvatarRef:   DefaultAvatarRef,
	}
	if r.Avatar != nil && *r.Avatar != "" {
		id.AvatarRef = *r.Avatar
	}
	if id.DisplayName == "" {
		id.DisplayName = FallbackIdentity(id.ID).DisplayName
	}
	return id
}

// PartnerRecord is one element of the chat-users response.
type PartnerRecord struct {
	UserID UserRef `json:"userId"`
}
