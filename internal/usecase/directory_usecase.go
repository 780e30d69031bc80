package usecase

import (
	"context"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/pkg/logger"
)

type DirectoryUseCase struct {
	conversationRepo repository.ConversationRepository
}

func NewDirectoryUseCase(conversationRepo repository.ConversationRepository) *DirectoryUseCase {
	return &DirectoryUseCase{conversationRepo: conversationRepo}
}

// LoadCounterparts resolves the users the local user has talked to, in the
// order the server lists them. Any failure yields an empty directory.
func (uc *DirectoryUseCase) LoadCounterparts(ctx context.Context) ([]*entity.Identity, error) {
	ids, err := uc.conversationRepo.ListPartnerIDs(ctx)
	if err != nil {
		logger.Error("LoadCounterparts Error: failed to list partners: %v", err)
		return []*entity.Identity{}, err
	}

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []*entity.Identity{}, nil
	}

	records, err := uc.conversationRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		logger.Error("LoadCounterparts Error: failed to resolve %d partners: %v", len(ids), err)
		return []*entity.Identity{}, err
	}

	resolved := make(map[string]*entity.Identity, len(records))
	for _, rec := range records {
		if rec.UserID == "" {
			continue
		}
		resolved[string(rec.UserID)] = rec.Identity()
	}

	counterparts := make([]*entity.Identity, 0, len(ids))
	for _, id := range ids {
		if identity, ok := resolved[id]; ok {
			counterparts = append(counterparts, identity)
			continue
		}
		logger.Warn("LoadCounterparts: no identity returned for user %s", id)
		counterparts = append(counterparts, entity.FallbackIdentity(id))
	}
	return counterparts, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
