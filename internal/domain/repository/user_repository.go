package repository

import (
	"context"

	"holachat/internal/domain/entity"
)

type AccountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Account, error)
}
