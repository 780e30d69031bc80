package repository

import (
	"context"
	"encoding/json"
	"net/url"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

const (
	chatUsersPath    = "/messages/chat-users"
	usersByIDsPath   = "/messages/users/by-ids"
	conversationPath = "/messages/conversation/"
	messagesPath     = "/messages"
)

// APIClient is the slice of the authenticated request client this adapter
// needs.
type APIClient interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
}

type restConversationRepository struct {
	client APIClient
}

func NewRestConversationRepository(client APIClient) repository.ConversationRepository {
	return &restConversationRepository{
		client: client,
	}
}

func (r *restConversationRepository) ListPartnerIDs(ctx context.Context) ([]string, error) {
	var partners []entity.PartnerRecord
	if err := r.client.Get(ctx, chatUsersPath, &partners); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(partners))
	for _, p := range partners {
		if p.UserID == "" {
			return nil, errors.Malformed("chat user entry without userId", nil)
		}
		ids = append(ids, string(p.UserID))
	}
	return ids, nil
}

func (r *restConversationRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]entity.UserRecord, error) {
	var users []entity.UserRecord
	body := map[string][]string{"ids": ids}
	if err := r.client.Post(ctx, usersByIDsPath, body, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetConversation decodes each record on its own so one bad row does not
// take the whole history down with it.
func (r *restConversationRepository) GetConversation(ctx context.Context, counterpartID string) ([]entity.MessageRecord, error) {
	var raw []json.RawMessage
	if err := r.client.Get(ctx, conversationPath+url.PathEscape(counterpartID), &raw); err != nil {
		return nil, err
	}

	records := make([]entity.MessageRecord, 0, len(raw))
	for i, item := range raw {
		var rec entity.MessageRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			logger.Warn("Skipping undecodable message record %d in conversation %s: %v", i, counterpartID, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *restConversationRepository) SendMessage(ctx context.Context, receiverID, content string) (*entity.MessageRecord, error) {
	body := map[string]string{
		"receiver_id": receiverID,
		"content":     content,
	}

	var created entity.MessageRecord
	if err := r.client.Post(ctx, messagesPath, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
