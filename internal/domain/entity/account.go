package entity

import "time"

// Account is a user row in the dev backend store.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         string    `json:"role" gorm:"not null;default:member"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// StoredMessage is a message row in the dev backend store.
type StoredMessage struct {
	MessageID  int64     `gorm:"column:message_id;primaryKey;autoIncrement"`
	SenderID   string    `gorm:"column:sender_id;index;not null"`
	ReceiverID string    `gorm:"column:receiver_id;index;not null"`
	Content    string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (StoredMessage) TableName() string {
	return "messages"
}

func (m *StoredMessage) Message() Message {
	return Message{
		ID:         m.MessageID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
