package service

import (
	"context"

	"holachat/internal/domain/entity"
)

// IdentityProvider resolves the local user. CurrentUser returns nil when no
// usable session exists and never panics.
type IdentityProvider interface {
	CurrentUser() *entity.Identity
}

// LiveChannel is the push side of the messaging core.
type LiveChannel interface {
	Start(ctx context.Context) error
	Stop()
}
