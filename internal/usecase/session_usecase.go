package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/service"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

// SessionStore is the persisted session the lifecycle follows.
type SessionStore interface {
	CurrentUser() *entity.Identity
	Watch(ctx context.Context, onChange func()) error
}

// SessionUseCase ties the live channel and the engine to the local session:
// both are created when a user is present and torn down when it goes away.
type SessionUseCase struct {
	store   SessionStore
	channel service.LiveChannel
	chat    *ChatUseCase

	mutex    sync.Mutex
	openUser string
}

func NewSessionUseCase(store SessionStore, channel service.LiveChannel, chat *ChatUseCase) *SessionUseCase {
	return &SessionUseCase{
		store:   store,
		channel: channel,
		chat:    chat,
	}
}

// Open starts the live channel and loads the directory concurrently. The
// channel keeps running when the directory load fails.
func (uc *SessionUseCase) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.openLocked(ctx)
}

func (uc *SessionUseCase) openLocked(ctx context.Context) error {
	user := uc.store.CurrentUser()
	if user == nil {
		return errors.NotAuthenticated("not authenticated")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return uc.channel.Start(ctx)
	})
	g.Go(func() error {
		return uc.chat.LoadDirectory(gctx)
	})

	uc.openUser = user.ID
	logger.Info("Session opened for user %s", user.ID)
	return g.Wait()
}

// Close stops the channel and drops all conversation state.
func (uc *SessionUseCase) Close() {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	uc.closeLocked()
}

func (uc *SessionUseCase) closeLocked() {
	uc.channel.Stop()
	uc.chat.Reset()
	if uc.openUser != "" {
		logger.Info("Session closed for user %s", uc.openUser)
	}
	uc.openUser = ""
}

func (uc *SessionUseCase) OpenUser() string {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.openUser
}

// Run follows the session blob until ctx ends: it closes when the user logs
// out and reopens when a different user logs in.
func (uc *SessionUseCase) Run(ctx context.Context) error {
	changes := make(chan struct{}, 1)
	err := uc.store.Watch(ctx, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	uc.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			uc.Close()
			return nil
		case <-changes:
			uc.sync(ctx)
		}
	}
}

func (uc *SessionUseCase) sync(ctx context.Context) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	user := uc.store.CurrentUser()
	switch {
	case user == nil && uc.openUser != "":
		uc.closeLocked()
	case user != nil && user.ID != uc.openUser:
		if uc.openUser != "" {
			uc.closeLocked()
		}
		if err := uc.openLocked(ctx); err != nil {
			logger.Error("Session Error: failed to open session for %s: %v", user.ID, err)
		}
	}
}
