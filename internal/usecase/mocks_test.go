package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"holachat/internal/domain/entity"
)

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) ListPartnerIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockConversationRepo) GetUsersByIDs(ctx context.Context, ids []string) ([]entity.UserRecord, error) {
	args := m.Called(ctx, ids)
	users, _ := args.Get(0).([]entity.UserRecord)
	return users, args.Error(1)
}

func (m *mockConversationRepo) GetConversation(ctx context.Context, counterpartID string) ([]entity.MessageRecord, error) {
	args := m.Called(ctx, counterpartID)
	records, _ := args.Get(0).([]entity.MessageRecord)
	return records, args.Error(1)
}

func (m *mockConversationRepo) SendMessage(ctx context.Context, receiverID, content string) (*entity.MessageRecord, error) {
	args := m.Called(ctx, receiverID, content)
	record, _ := args.Get(0).(*entity.MessageRecord)
	return record, args.Error(1)
}

// mutableIdentity is an IdentityProvider whose user can change mid-test.
type mutableIdentity struct {
	mu   sync.Mutex
	user *entity.Identity
}

func identityOf(id string) *mutableIdentity {
	if id == "" {
		return &mutableIdentity{}
	}
	return &mutableIdentity{user: &entity.Identity{ID: id, DisplayName: "User " + id}}
}

func (m *mutableIdentity) CurrentUser() *entity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

func (m *mutableIdentity) set(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		m.user = nil
		return
	}
	m.user = &entity.Identity{ID: id, DisplayName: "User " + id}
}

func records(t *testing.T, raw string) []entity.MessageRecord {
	t.Helper()
	var recs []entity.MessageRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &recs))
	return recs
}

func recordOf(t *testing.T, raw string) *entity.MessageRecord {
	t.Helper()
	var rec entity.MessageRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return &rec
}

func message(id int64, from, to, content string) entity.Message {
	return entity.Message{ID: id, SenderID: from, ReceiverID: to, Content: content}
}

func ids(messages []entity.Message) []int64 {
	out := make([]int64, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}
