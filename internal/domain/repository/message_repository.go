package repository

import (
	"context"

	"holachat/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.StoredMessage) error
	ListConversation(ctx context.Context, userID, counterpartID string, limit, offset int) ([]*entity.StoredMessage, error)
	ListPartnerIDs(ctx context.Context, userID string) ([]string, error)
}
