package usecase

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

// TokenIssuer signs session tokens for logged in accounts.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

type AuthUseCase struct {
	accountRepo repository.AccountRepository
	tokens      TokenIssuer
}

func NewAuthUseCase(accountRepo repository.AccountRepository, tokens TokenIssuer) *AuthUseCase {
	return &AuthUseCase{
		accountRepo: accountRepo,
		tokens:      tokens,
	}
}

type RegisterInput struct {
	ID       string
	Name     string
	Password string
	Avatar   string
}

// ParseSeed reads an "id:name:password" account seed.
func ParseSeed(seed string) (RegisterInput, error) {
	parts := strings.SplitN(seed, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return RegisterInput{}, errors.BadRequest(fmt.Sprintf("invalid seed %q, want id:name:password", seed), nil)
	}
	return RegisterInput{ID: parts[0], Name: parts[1], Password: parts[2]}, nil
}

func (uc *AuthUseCase) Register(ctx context.Context, input RegisterInput) (*entity.Account, error) {
	if input.ID == "" || input.Name == "" || input.Password == "" {
		return nil, errors.BadRequest("id, name and password are required", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal("Failed to hash password", err)
	}

	account := &entity.Account{
		ID:           input.ID,
		Name:         input.Name,
		Avatar:       input.Avatar,
		PasswordHash: string(hash),
	}
	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Seed registers every account, skipping ids that already exist.
func (uc *AuthUseCase) Seed(ctx context.Context, inputs []RegisterInput) error {
	for _, input := range inputs {
		if _, err := uc.Register(ctx, input); err != nil {
			if errors.Is(err, "CONFLICT") {
				logger.Info("Seed: account %s already exists", input.ID)
				continue
			}
			return err
		}
		logger.Info("Seed: created account %s", input.ID)
	}
	return nil
}

// Login checks the password and returns the session blob the client
// persists.
func (uc *AuthUseCase) Login(ctx context.Context, id, password string) (*entity.Session, error) {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return nil, errors.Unauthorized("Invalid credentials", nil)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		logger.Warn("Login failed for %s: %v", id, err)
		return nil, errors.Unauthorized("Invalid credentials", nil)
	}

	token, err := uc.tokens.Issue(account.ID)
	if err != nil {
		return nil, errors.Internal("Failed to generate authentication token", err)
	}

	return &entity.Session{
		ID:    entity.UserRef(account.ID),
		Name:  account.Name,
		Role:  account.Role,
		Token: token,
	}, nil
}

// Authenticate resolves a bearer token to an existing account id.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := uc.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	if _, err := uc.accountRepo.GetByID(ctx, userID); err != nil {
		return "", errors.Unauthorized("Unknown account", err)
	}
	return userID, nil
}
