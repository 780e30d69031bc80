package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/internal/infrastructure/ratelimit"
	ws "holachat/internal/infrastructure/websocket"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

// Publisher delivers a record to a broker destination.
type Publisher interface {
	Publish(destination string, record json.RawMessage) int
}

// RelayUseCase is the server side of the messaging API: it stores messages
// and pushes them to both participants' inboxes.
type RelayUseCase struct {
	messageRepo repository.MessageRepository
	accountRepo repository.AccountRepository
	publisher   Publisher
	rateLimiter *ratelimit.RateLimiter
}

func NewRelayUseCase(
	messageRepo repository.MessageRepository,
	accountRepo repository.AccountRepository,
	publisher Publisher,
	rateLimiter *ratelimit.RateLimiter,
) *RelayUseCase {
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewRateLimiter(nil, ratelimit.Policy{})
	}
	return &RelayUseCase{
		messageRepo: messageRepo,
		accountRepo: accountRepo,
		publisher:   publisher,
		rateLimiter: rateLimiter,
	}
}

type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// ConversationMessage is a history record with participants expanded.
type ConversationMessage struct {
	MessageID  int64       `json:"message_id"`
	SenderID   Participant `json:"sender_id"`
	ReceiverID Participant `json:"receiver_id"`
	Content    string      `json:"content"`
	CreatedAt  string      `json:"created_at"`
}

type PartnerView struct {
	UserID string `json:"userId"`
}

type UserView struct {
	UserID string  `json:"userId"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

type SendMessageInput struct {
	ReceiverID string
	Content    string
}

func (uc *RelayUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, ratelimit.ActionSendMessage)
	if !allowed {
		logger.Warn("SendMessage Rate Limited: user %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errors.BadRequest("Message content is required", nil)
	}
	if input.ReceiverID == senderID {
		return nil, errors.BadRequest("Cannot send a message to yourself", nil)
	}
	if _, err := uc.accountRepo.GetByID(ctx, input.ReceiverID); err != nil {
		return nil, err
	}

	stored := &entity.StoredMessage{
		SenderID:   senderID,
		ReceiverID: input.ReceiverID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	if err := uc.messageRepo.Create(ctx, stored); err != nil {
		logger.Error("SendMessage Error: failed to store message from %s: %v", senderID, err)
		return nil, errors.Internal("Failed to save message", err)
	}

	msg := stored.Message()
	record, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Internal("Failed to encode message", err)
	}

	delivered := uc.publisher.Publish(ws.InboxDestination(input.ReceiverID), record)
	delivered += uc.publisher.Publish(ws.InboxDestination(senderID), record)
	logger.Debug("SendMessage: message %d delivered to %d subscriptions", msg.ID, delivered)

	return &msg, nil
}

// ListPartners returns the ids userID has exchanged messages with, most
// recent first.
func (uc *RelayUseCase) ListPartners(ctx context.Context, userID string) ([]PartnerView, error) {
	ids, err := uc.messageRepo.ListPartnerIDs(ctx, userID)
	if err != nil {
		return nil, errors.Internal("Failed to list chat partners", err)
	}

	partners := make([]PartnerView, 0, len(ids))
	for _, id := range ids {
		partners = append(partners, PartnerView{UserID: id})
	}
	return partners, nil
}

// GetUsersByIDs resolves identities; unknown ids are left out.
func (uc *RelayUseCase) GetUsersByIDs(ctx context.Context, ids []string) ([]UserView, error) {
	accounts, err := uc.accountRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Internal("Failed to resolve users", err)
	}

	users := make([]UserView, 0, len(accounts))
	for _, account := range accounts {
		view := UserView{UserID: account.ID, Name: account.Name}
		if account.Avatar != "" {
			avatar := account.Avatar
			view.Avatar = &avatar
		}
		users = append(users, view)
	}
	return users, nil
}

func (uc *RelayUseCase) GetConversation(ctx context.Context, userID, counterpartID string, limit, offset int) ([]ConversationMessage, error) {
	stored, err := uc.messageRepo.ListConversation(ctx, userID, counterpartID, limit, offset)
	if err != nil {
		return nil, errors.Internal("Failed to load conversation", err)
	}

	accounts, err := uc.accountRepo.GetByIDs(ctx, []string{userID, counterpartID})
	if err != nil {
		return nil, errors.Internal("Failed to resolve participants", err)
	}
	people := make(map[string]Participant, len(accounts))
	for _, account := range accounts {
		people[account.ID] = Participant{ID: account.ID, Name: account.Name, Avatar: account.Avatar}
	}
	participant := func(id string) Participant {
		if p, ok := people[id]; ok {
			return p
		}
		return Participant{ID: id}
	}

	messages := make([]ConversationMessage, 0, len(stored))
	for _, row := range stored {
		msg := row.Message()
		messages = append(messages, ConversationMessage{
			MessageID:  msg.ID,
			SenderID:   participant(msg.SenderID),
			ReceiverID: participant(msg.ReceiverID),
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt,
		})
	}
	return messages, nil
}
