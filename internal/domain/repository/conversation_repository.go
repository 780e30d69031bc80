package repository

import (
	"context"

	"holachat/internal/domain/entity"
)

// ConversationRepository is the client's view of the messaging REST
// collaborator. Implementations return wire records; normalization is the
// caller's job.
type ConversationRepository interface {
	ListPartnerIDs(ctx context.Context) ([]string, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]entity.UserRecord, error)
	GetConversation(ctx context.Context, counterpartID string) ([]entity.MessageRecord, error)
	SendMessage(ctx context.Context, receiverID, content string) (*entity.MessageRecord, error)
}
