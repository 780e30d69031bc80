package repository

import (
	"context"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/pkg/errors"
)

const loginPath = "/auth/login"

type restAuthRepository struct {
	client APIClient
}

func NewRestAuthRepository(client APIClient) repository.AuthRepository {
	return &restAuthRepository{
		client: client,
	}
}

func (r *restAuthRepository) Login(ctx context.Context, userID, password string) (*entity.Session, error) {
	body := map[string]string{"id": userID, "password": password}

	var session entity.Session
	if err := r.client.Post(ctx, loginPath, body, &session); err != nil {
		return nil, err
	}
	if session.ID == "" || session.Token == "" {
		return nil, errors.Malformed("login response carried no session", nil)
	}
	return &session, nil
}
