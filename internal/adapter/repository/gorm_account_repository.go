package repository

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/pkg/errors"
)

type gormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &gormAccountRepository{
		db: db,
	}
}

func (r *gormAccountRepository) Create(ctx context.Context, account *entity.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.Role == "" {
		account.Role = "member"
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Account{}).Where("id = ?", account.ID).Count(&count).Error; err != nil {
		return errors.Internal("Failed to check account", err)
	}
	if count > 0 {
		return errors.Conflict("Account already exists")
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return errors.Internal("Failed to create account", err)
	}
	return nil
}

func (r *gormAccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	var account entity.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Account", err)
		}
		return nil, errors.Internal("Failed to get account", err)
	}
	return &account, nil
}

// GetByIDs returns the accounts that exist, in the order of ids.
func (r *gormAccountRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.Account, error) {
	if len(ids) == 0 {
		return []*entity.Account{}, nil
	}

	var accounts []*entity.Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, errors.Internal("Failed to get accounts", err)
	}

	byID := make(map[string]*entity.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	ordered := make([]*entity.Account, 0, len(accounts))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
			delete(byID, id)
		}
	}
	return ordered, nil
}
