package entity

// Session is the persisted login blob.
type Session struct {
	ID    UserRef `json:"id"`
	Name  string  `json:"name"`
	Role  string  `json:"role,omitempty"`
	Token string  `json:"token,omitempty"`
}

func (s *Session) Identity() *Identity {
	return &Identity{
		ID:          string(s.ID),
		DisplayName: s.Name,
	}
}
