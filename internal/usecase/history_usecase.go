package usecase

import (
	"context"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/internal/infrastructure/metrics"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

type HistoryUseCase struct {
	conversationRepo repository.ConversationRepository
	metrics          *metrics.Client
}

func NewHistoryUseCase(conversationRepo repository.ConversationRepository, m *metrics.Client) *HistoryUseCase {
	if m == nil {
		m = metrics.NewClient(nil)
	}
	return &HistoryUseCase{conversationRepo: conversationRepo, metrics: m}
}

// FetchHistory returns the normalized conversation in server order. Records
// that fail normalization are skipped.
func (uc *HistoryUseCase) FetchHistory(ctx context.Context, localUserID, counterpartID string) ([]entity.Message, error) {
	if localUserID == "" {
		return []entity.Message{}, errors.NotAuthenticated("not authenticated")
	}
	if counterpartID == "" {
		return []entity.Message{}, errors.BadRequest("counterpart is required", nil)
	}

	records, err := uc.conversationRepo.GetConversation(ctx, counterpartID)
	if err != nil {
		uc.metrics.HistoryFetches.WithLabelValues("error").Inc()
		logger.Error("FetchHistory Error: conversation with %s: %v", counterpartID, err)
		return []entity.Message{}, err
	}

	messages := make([]entity.Message, 0, len(records))
	for i, rec := range records {
		msg, err := rec.Normalize()
		if err != nil {
			logger.Warn("FetchHistory: skipping record %d of conversation with %s: %v", i, counterpartID, err)
			continue
		}
		messages = append(messages, msg)
	}

	uc.metrics.HistoryFetches.WithLabelValues("ok").Inc()
	return messages, nil
}
