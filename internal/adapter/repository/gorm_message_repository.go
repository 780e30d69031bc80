package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/pkg/errors"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &gormMessageRepository{
		db: db,
	}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *entity.StoredMessage) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

// ListConversation returns both directions of the conversation oldest
// first. A zero limit returns everything.
func (r *gormMessageRepository) ListConversation(ctx context.Context, userID, counterpartID string, limit, offset int) ([]*entity.StoredMessage, error) {
	query := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, counterpartID, counterpartID, userID).
		Order("message_id ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var messages []*entity.StoredMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, errors.Internal("Failed to list conversation", err)
	}
	return messages, nil
}

// ListPartnerIDs returns everyone userID has exchanged messages with, most
// recent conversation first.
func (r *gormMessageRepository) ListPartnerIDs(ctx context.Context, userID string) ([]string, error) {
	var messages []*entity.StoredMessage
	err := r.db.WithContext(ctx).
		Select("sender_id", "receiver_id").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("message_id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Internal("Failed to list chat partners", err)
	}

	seen := make(map[string]bool)
	partners := make([]string, 0)
	for _, m := range messages {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		if other == userID || seen[other] {
			continue
		}
		seen[other] = true
		partners = append(partners, other)
	}
	return partners, nil
}
