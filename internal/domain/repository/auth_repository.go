package repository

import (
	"context"

	"holachat/internal/domain/entity"
)

// AuthRepository exchanges credentials for a session blob.
type AuthRepository interface {
	Login(ctx context.Context, userID, password string) (*entity.Session, error)
}
