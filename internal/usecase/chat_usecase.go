package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/repository"
	"holachat/internal/domain/service"
	"holachat/internal/infrastructure/metrics"
	"holachat/internal/infrastructure/ratelimit"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

// ChatState is a point-in-time copy of the engine state.
type ChatState struct {
	ActiveCounterpartID string
	Counterparts        []*entity.Identity
	Messages            []entity.Message
	Loading             bool
	LastError           string
	Connection          entity.ConnectionStatus
}

// ChatUseCase owns the active conversation and its reconciled message list.
// History results, send responses and live pushes all funnel through it.
type ChatUseCase struct {
	identity         service.IdentityProvider
	conversationRepo repository.ConversationRepository
	directory        *DirectoryUseCase
	history          *HistoryUseCase
	rateLimiter      *ratelimit.RateLimiter
	metrics          *metrics.Client
	requestTimeout   time.Duration

	mutex        sync.Mutex
	active       string
	generation   uint64
	cancelFetch  context.CancelFunc
	loading      bool
	messages     []entity.Message
	seen         map[int64]struct{}
	pending      []entity.Message
	pendingSent  map[int64]struct{}
	counterparts []*entity.Identity
	lastError    string
	connection   entity.ConnectionStatus
	subscribers  map[int]chan struct{}
	nextSub      int
}

func NewChatUseCase(
	identity service.IdentityProvider,
	conversationRepo repository.ConversationRepository,
	rateLimiter *ratelimit.RateLimiter,
	m *metrics.Client,
	requestTimeout time.Duration,
) *ChatUseCase {
	if m == nil {
		m = metrics.NewClient(nil)
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewRateLimiter(nil, ratelimit.Policy{})
	}
	return &ChatUseCase{
		identity:         identity,
		conversationRepo: conversationRepo,
		directory:        NewDirectoryUseCase(conversationRepo),
		history:          NewHistoryUseCase(conversationRepo, m),
		rateLimiter:      rateLimiter,
		metrics:          m,
		requestTimeout:   requestTimeout,
		seen:             make(map[int64]struct{}),
		connection:       entity.ConnectionIdle,
		subscribers:      make(map[int]chan struct{}),
	}
}

func (uc *ChatUseCase) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.requestTimeout > 0 {
		return context.WithTimeout(ctx, uc.requestTimeout)
	}
	return context.WithCancel(ctx)
}

func (uc *ChatUseCase) localUserID() string {
	if user := uc.identity.CurrentUser(); user != nil {
		return user.ID
	}
	return ""
}

// LoadDirectory loads the counterparts and, when nothing is selected yet,
// opens the first one.
func (uc *ChatUseCase) LoadDirectory(ctx context.Context) error {
	reqCtx, cancel := uc.requestContext(ctx)
	counterparts, err := uc.directory.LoadCounterparts(reqCtx)
	cancel()

	uc.mutex.Lock()
	uc.counterparts = counterparts
	if err != nil {
		uc.lastError = errors.Message(err)
	}
	uc.notifyLocked()
	uc.mutex.Unlock()

	if err != nil || len(counterparts) == 0 {
		return err
	}
	return uc.selectCounterpart(ctx, counterparts[0].ID, true)
}

// SelectCounterpart switches the active conversation and loads its history.
// A fetch for an earlier selection is cancelled and its result discarded.
func (uc *ChatUseCase) SelectCounterpart(ctx context.Context, counterpartID string) error {
	return uc.selectCounterpart(ctx, counterpartID, false)
}

func (uc *ChatUseCase) selectCounterpart(ctx context.Context, counterpartID string, onlyIfIdle bool) error {
	uc.mutex.Lock()
	if onlyIfIdle && uc.active != "" {
		uc.mutex.Unlock()
		return nil
	}

	uc.resetConversationLocked()
	uc.active = counterpartID
	if counterpartID == "" {
		uc.notifyLocked()
		uc.mutex.Unlock()
		return nil
	}

	gen := uc.generation
	fetchCtx, cancel := uc.requestContext(ctx)
	uc.cancelFetch = cancel
	uc.loading = true
	uc.notifyLocked()
	uc.mutex.Unlock()

	history, err := uc.history.FetchHistory(fetchCtx, uc.localUserID(), counterpartID)
	cancel()

	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if gen != uc.generation {
		logger.Debug("SelectCounterpart: discarding stale history for %s", counterpartID)
		return nil
	}
	uc.cancelFetch = nil
	uc.loading = false

	if err != nil {
		uc.lastError = errors.Message(err)
		// Acknowledged sends reached the server; only pushes are dropped.
		for _, msg := range uc.pending {
			if _, sent := uc.pendingSent[msg.ID]; sent {
				uc.appendLocked(msg)
			}
		}
		uc.pending = nil
		uc.pendingSent = nil
		uc.notifyLocked()
		return err
	}

	for _, msg := range history {
		uc.appendLocked(msg)
	}
	for _, msg := range uc.pending {
		uc.appendLocked(msg)
	}
	uc.pending = nil
	uc.pendingSent = nil
	uc.notifyLocked()
	return nil
}

// resetConversationLocked abandons the current conversation view.
func (uc *ChatUseCase) resetConversationLocked() {
	if uc.cancelFetch != nil {
		uc.cancelFetch()
		uc.cancelFetch = nil
	}
	uc.generation++
	uc.active = ""
	uc.loading = false
	uc.messages = nil
	uc.seen = make(map[int64]struct{})
	uc.pending = nil
	uc.pendingSent = nil
	uc.lastError = ""
}

// IngestPush merges a message delivered by the live channel. It reports
// whether the message was accepted into the active conversation.
func (uc *ChatUseCase) IngestPush(msg entity.Message) bool {
	local := uc.localUserID()
	if local == "" || (msg.SenderID != local && msg.ReceiverID != local) {
		return false
	}

	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.mergeLocked(msg, msg.CounterpartOf(local))
}

// mergeLocked applies msg if it belongs to the active conversation. While
// history is loading it is parked and merged after the history list.
func (uc *ChatUseCase) mergeLocked(msg entity.Message, counterpartID string) bool {
	if uc.active == "" || counterpartID != uc.active {
		return false
	}

	if uc.loading {
		if msg.HasID() {
			for _, p := range uc.pending {
				if p.ID == msg.ID {
					return false
				}
			}
		}
		uc.pending = append(uc.pending, msg)
		return true
	}

	if !uc.appendLocked(msg) {
		return false
	}
	uc.notifyLocked()
	return true
}

func (uc *ChatUseCase) appendLocked(msg entity.Message) bool {
	if msg.HasID() {
		if _, dup := uc.seen[msg.ID]; dup {
			return false
		}
		uc.seen[msg.ID] = struct{}{}
	}
	uc.messages = append(uc.messages, msg)
	return true
}

// Send posts content to the active counterpart and merges the server's
// record. Blank content or no active counterpart is a no-op.
func (uc *ChatUseCase) Send(ctx context.Context, content string) error {
	trimmed := strings.TrimSpace(content)

	uc.mutex.Lock()
	active, gen := uc.active, uc.generation
	uc.mutex.Unlock()

	if trimmed == "" || active == "" {
		return nil
	}

	local := uc.localUserID()
	if local == "" {
		return uc.fail(errors.NotAuthenticated("not authenticated"))
	}

	if allowed, wait := uc.rateLimiter.Allow(local, ratelimit.ActionSendMessage); !allowed {
		uc.metrics.Sends.WithLabelValues("throttled").Inc()
		logger.Warn("Send Rate Limited: user %s must wait %v", local, wait)
		return uc.fail(errors.TooManyRequests("You are sending messages too quickly", wait))
	}

	reqCtx, cancel := uc.requestContext(ctx)
	record, err := uc.conversationRepo.SendMessage(reqCtx, active, trimmed)
	cancel()
	if err != nil {
		uc.metrics.Sends.WithLabelValues("error").Inc()
		logger.Error("Send Error: message to %s: %v", active, err)
		if uc.superseded(gen) {
			return err
		}
		return uc.fail(err)
	}
	uc.metrics.Sends.WithLabelValues("ok").Inc()

	msg, err := record.Normalize()
	if err != nil || !msg.HasID() {
		if uc.superseded(gen) {
			return nil
		}
		logger.Warn("Send: response for %s carried no usable record, refreshing", active)
		return uc.Refresh(ctx)
	}

	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	// The conversation changed while the request was in flight; its history
	// will carry the message when it is opened again.
	if gen != uc.generation {
		logger.Debug("Send: selection changed, not merging message %d for %s", msg.ID, active)
		return nil
	}
	uc.lastError = ""
	if !uc.mergeLocked(msg, active) {
		uc.notifyLocked()
	}
	if uc.loading {
		if uc.pendingSent == nil {
			uc.pendingSent = make(map[int64]struct{})
		}
		uc.pendingSent[msg.ID] = struct{}{}
	}
	return nil
}

func (uc *ChatUseCase) superseded(gen uint64) bool {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return gen != uc.generation
}

// Refresh re-fetches the active conversation and merges anything new.
func (uc *ChatUseCase) Refresh(ctx context.Context) error {
	uc.mutex.Lock()
	active, gen, loading := uc.active, uc.generation, uc.loading
	uc.mutex.Unlock()

	if active == "" || loading {
		return nil
	}

	reqCtx, cancel := uc.requestContext(ctx)
	history, err := uc.history.FetchHistory(reqCtx, uc.localUserID(), active)
	cancel()

	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if gen != uc.generation {
		return nil
	}
	if err != nil {
		uc.lastError = errors.Message(err)
		uc.notifyLocked()
		return err
	}
	for _, msg := range history {
		if msg.HasID() {
			uc.appendLocked(msg)
		}
	}
	uc.notifyLocked()
	return nil
}

func (uc *ChatUseCase) fail(err error) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	uc.lastError = errors.Message(err)
	uc.notifyLocked()
	return err
}

func (uc *ChatUseCase) SetConnectionStatus(status entity.ConnectionStatus) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if uc.connection == status {
		return
	}
	uc.connection = status
	uc.notifyLocked()
}

func (uc *ChatUseCase) Snapshot() ChatState {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	return ChatState{
		ActiveCounterpartID: uc.active,
		Counterparts:        append([]*entity.Identity(nil), uc.counterparts...),
		Messages:            append([]entity.Message(nil), uc.messages...),
		Loading:             uc.loading,
		LastError:           uc.lastError,
		Connection:          uc.connection,
	}
}

// Subscribe returns a channel that receives a value after state changes.
// Notifications coalesce; readers should take a Snapshot on each receive.
func (uc *ChatUseCase) Subscribe() (<-chan struct{}, func()) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	id := uc.nextSub
	uc.nextSub++
	ch := make(chan struct{}, 1)
	uc.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			uc.mutex.Lock()
			defer uc.mutex.Unlock()
			delete(uc.subscribers, id)
			close(ch)
		})
	}
}

func (uc *ChatUseCase) notifyLocked() {
	for _, ch := range uc.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Reset drops all transient state, used when the session ends.
func (uc *ChatUseCase) Reset() {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	uc.resetConversationLocked()
	uc.counterparts = nil
	uc.connection = entity.ConnectionIdle
	uc.notifyLocked()
}
