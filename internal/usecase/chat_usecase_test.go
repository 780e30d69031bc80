package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"holachat/internal/domain/entity"
	"holachat/internal/infrastructure/metrics"
	"holachat/internal/infrastructure/ratelimit"
	"holachat/pkg/errors"
)

func newTestChat(repo *mockConversationRepo, identity *mutableIdentity) *ChatUseCase {
	return NewChatUseCase(identity, repo, nil, nil, time.Second)
}

// selectWith opens counterpartID with the given history.
func selectWith(t *testing.T, chat *ChatUseCase, repo *mockConversationRepo, counterpartID, history string) {
	t.Helper()
	repo.On("GetConversation", mock.Anything, counterpartID).Return(records(t, history), nil).Once()
	require.NoError(t, chat.SelectCounterpart(context.Background(), counterpartID))
}

func TestLoadDirectoryAutoSelectsFirstCounterpart(t *testing.T) {
	repo := new(mockConversationRepo)
	repo.On("ListPartnerIDs", mock.Anything).Return([]string{"7", "9"}, nil)
	repo.On("GetUsersByIDs", mock.Anything, []string{"7", "9"}).Return([]entity.UserRecord{
		{UserID: "7", Name: "Alice"},
		{UserID: "9", Name: "Bob"},
	}, nil)
	repo.On("GetConversation", mock.Anything, "7").Return(records(t, `[
		{"message_id": 1, "sender_id": {"id": "7"}, "receiver_id": "1", "content": "hi"}
	]`), nil)

	chat := newTestChat(repo, identityOf("1"))
	require.NoError(t, chat.LoadDirectory(context.Background()))

	state := chat.Snapshot()
	require.Len(t, state.Counterparts, 2)
	assert.Equal(t, "Alice", state.Counterparts[0].DisplayName)
	assert.Equal(t, "Bob", state.Counterparts[1].DisplayName)
	assert.Equal(t, "7", state.ActiveCounterpartID)
	assert.False(t, state.Loading)
	assert.Equal(t, []int64{1}, ids(state.Messages))
}

func TestLoadDirectoryKeepsExistingSelection(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))
	selectWith(t, chat, repo, "9", `[]`)

	repo.On("ListPartnerIDs", mock.Anything).Return([]string{"7", "9"}, nil)
	repo.On("GetUsersByIDs", mock.Anything, mock.Anything).Return([]entity.UserRecord{}, nil)

	require.NoError(t, chat.LoadDirectory(context.Background()))
	assert.Equal(t, "9", chat.Snapshot().ActiveCounterpartID)
	repo.AssertNumberOfCalls(t, "GetConversation", 1)
}

func TestEmptyDirectoryStaysIdle(t *testing.T) {
	repo := new(mockConversationRepo)
	repo.On("ListPartnerIDs", mock.Anything).Return([]string{}, nil)

	chat := newTestChat(repo, identityOf("1"))
	require.NoError(t, chat.LoadDirectory(context.Background()))

	state := chat.Snapshot()
	assert.Empty(t, state.Counterparts)
	assert.Empty(t, state.ActiveCounterpartID)
	assert.Empty(t, state.Messages)
	assert.False(t, state.Loading)
	repo.AssertNotCalled(t, "GetUsersByIDs", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything)
}

func TestLoadDirectoryFailureSurfacesError(t *testing.T) {
	repo := new(mockConversationRepo)
	repo.On("ListPartnerIDs", mock.Anything).Return(nil, errors.FromStatus(401, "Token expired"))

	chat := newTestChat(repo, identityOf("1"))
	err := chat.LoadDirectory(context.Background())
	require.Error(t, err)

	state := chat.Snapshot()
	assert.Equal(t, "Token expired", state.LastError)
	assert.Empty(t, state.Counterparts)
	assert.Empty(t, state.ActiveCounterpartID)
}

func TestSendThenPushEchoKeepsOneEntry(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))
	selectWith(t, chat, repo, "7", `[]`)

	repo.On("SendMessage", mock.Anything, "7", "hi").
		Return(recordOf(t, `{"message_id": 42, "sender_id": "1", "receiver_id": "7", "content": "hi"}`), nil)

	require.NoError(t, chat.Send(context.Background(), "  hi  "))
	assert.False(t, chat.IngestPush(message(42, "1", "7", "hi")))

	state := chat.Snapshot()
	assert.Equal(t, []int64{42}, ids(state.Messages))
	assert.Empty(t, state.LastError)
}

func TestPushThenSendResponseKeepsOneEntry(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))
	selectWith(t, chat, repo, "7", `[]`)

	repo.On("SendMessage", mock.Anything, "7", "hi").
		Return(recordOf(t, `{"message_id": 42, "sender_id": {"id": "1"}, "receiver_id": "7", "content": "hi"}`), nil)

	assert.True(t, chat.IngestPush(message(42, "1", "7", "hi")))
	require.NoError(t, chat.Send(context.Background(), "hi"))
	assert.False(t, chat.IngestPush(message(42, "1", "7", "hi")))

	assert.Equal(t, []int64{42}, ids(chat.Snapshot().Messages))
}

func TestIngestPushIsScopedToActiveCounterpart(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))

	assert.False(t, chat.IngestPush(message(1, "7", "1", "before selection")))

	selectWith(t, chat, repo, "7", `[]`)
	assert.False(t, chat.IngestPush(message(2, "9", "1", "other conversation")))
	assert.False(t, chat.IngestPush(message(3, "7", "9", "not ours")))
	assert.Empty(t, chat.Snapshot().Messages)

	assert.True(t, chat.IngestPush(message(4, "7", "1", "incoming")))
	assert.True(t, chat.IngestPush(message(5, "1", "7", "outgoing from another device")))
	assert.Equal(t, []int64{4, 5}, ids(chat.Snapshot().Messages))
}

func TestIngestPushWithoutIdentityIsIgnored(t *testing.T) {
	repo := new(mockConversationRepo)
	identity := identityOf("1")
	chat := newTestChat(repo, identity)
	selectWith(t, chat, repo, "7", `[]`)

	identity.set("")
	assert.False(t, chat.IngestPush(message(4, "7", "1", "incoming")))
	assert.Empty(t, chat.Snapshot().Messages)
}

func TestStaleHistoryIsDiscarded(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))

	started := make(chan struct{})
	release := make(chan struct{})
	var staleCtx context.Context
	repo.On("GetConversation", mock.Anything, "A").Run(func(args mock.Arguments) {
		staleCtx = args.Get(0).(context.Context)
		close(started)
		<-release
	}).Return(records(t, `[{"message_id": 1, "sender_id": "A", "receiver_id": "1", "content": "old"}]`), nil)
	repo.On("GetConversation", mock.Anything, "B").
		Return(records(t, `[{"message_id": 2, "sender_id": "B", "receiver_id": "1", "content": "new"}]`), nil)

	done := make(chan error, 1)
	go func() { done <- chat.SelectCounterpart(context.Background(), "A") }()
	<-started

	require.NoError(t, chat.SelectCounterpart(context.Background(), "B"))
	assert.Error(t, staleCtx.Err(), "superseded fetch should be cancelled")

	close(release)
	require.NoError(t, <-done)

	state := chat.Snapshot()
	assert.Equal(t, "B", state.ActiveCounterpartID)
	assert.Equal(t, []int64{2}, ids(state.Messages))
	assert.False(t, state.Loading)
}

func TestSendNoOps(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))

	require.NoError(t, chat.Send(context.Background(), "hello"))
	assert.Equal(t, ChatState{Connection: entity.ConnectionIdle}, chat.Snapshot())

	selectWith(t, chat, repo, "7", `[{"message_id": 1, "sender_id": "7", "receiver_id": "1", "content": "hi"}]`)
	before := chat.Snapshot()
	require.NoError(t, chat.Send(context.Background(), ""))
	require.NoError(t, chat.Send(context.Background(), "   \n\t"))
	assert.Equal(t, before, chat.Snapshot())

	repo.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendWithoutIdentityFailsLocally(t *testing.T) {
	repo := new(mockConversationRepo)
	identity := identityOf("1")
	chat := newTestChat(repo, identity)
	selectWith(t, chat, repo, "7", `[]`)

	identity.set("")
	err := chat.Send(context.Background(), "hi")
	assert.True(t, errors.Is(err, "NOT_AUTHENTICATED"))
	assert.Equal(t, "not authenticated", chat.Snapshot().LastError)
	repo.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendFailureLeavesNoGhostMessage(t *testing.T) {
	repo := new(mockConversationRepo)
	m := metrics.NewClient(nil)
	chat := NewChatUseCase(identityOf("1"), repo, nil, m, time.Second)
	selectWith(t, chat, repo, "7", `[]`)

	repo.On("SendMessage", mock.Anything, "7", "hi").Return(nil, errors.FromStatus(500, "API error: Internal Server Error"))

	require.Error(t, chat.Send(context.Background(), "hi"))
	state := chat.Snapshot()
	assert.Empty(t, state.Messages)
	assert.Equal(t, "API error: Internal Server Error", state.LastError)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Sends.WithLabelValues("error")))
}

func TestSendIsThrottled(t *testing.T) {
	repo := new(mockConversationRepo)
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage: ratelimit.PerMinute(1),
	}, ratelimit.Policy{})
	chat := NewChatUseCase(identityOf("1"), repo, limiter, nil, time.Second)
	selectWith(t, chat, repo, "7", `[]`)

	repo.On("SendMessage", mock.Anything, "7", "one").
		Return(recordOf(t, `{"message_id": 1, "sender_id": "1", "receiver_id": "7", "content": "one"}`), nil)

	require.NoError(t, chat.Send(context.Background(), "one"))
	err := chat.Send(context.Background(), "two")
	assert.True(t, errors.Is(err, "TOO_MANY_REQUESTS"))

	state := chat.Snapshot()
	assert.Equal(t, []int64{1}, ids(state.Messages))
	assert.NotEmpty(t, state.LastError)
	repo.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestSendResponseWithoutIDRefreshes(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))
	selectWith(t, chat, repo, "7", `[{"message_id": 1, "sender_id": "7", "receiver_id": "1", "content": "hi"}]`)

	repo.On("SendMessage", mock.Anything, "7", "yo").
		Return(recordOf(t, `{"sender_id": "1", "receiver_id": "7", "content": "yo"}`), nil)
	repo.On("GetConversation", mock.Anything, "7").Return(records(t, `[
		{"message_id": 1, "sender_id": "7", "receiver_id": "1", "content": "hi"},
		{"message_id": 2, "sender_id": "1", "receiver_id": "7", "content": "yo"}
	]`), nil).Once()

	require.NoError(t, chat.Send(context.Background(), "yo"))
	assert.Equal(t, []int64{1, 2}, ids(chat.Snapshot().Messages))
	repo.AssertNumberOfCalls(t, "GetConversation", 2)
}

func TestPushDuringLoadingSurvivesHistoryApply(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))

	started := make(chan struct{})
	release := make(chan struct{})
	repo.On("GetConversation", mock.Anything, "7").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(records(t, `[
		{"message_id": 49, "sender_id": "7", "receiver_id": "1", "content": "a"},
		{"message_id": 50, "sender_id": "7", "receiver_id": "1", "content": "b"}
	]`), nil)

	done := make(chan error, 1)
	go func() { done <- chat.SelectCounterpart(context.Background(), "7") }()
	<-started

	assert.True(t, chat.Snapshot().Loading)
	assert.True(t, chat.IngestPush(message(50, "7", "1", "b")))
	assert.False(t, chat.IngestPush(message(50, "7", "1", "b")))
	assert.True(t, chat.IngestPush(message(51, "7", "1", "c")))
	assert.Empty(t, chat.Snapshot().Messages)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []int64{49, 50, 51}, ids(chat.Snapshot().Messages))
}

func TestHistoryFailureSetsLastError(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))
	repo.On("GetConversation", mock.Anything, "7").Return(nil, errors.Unavailable("failed to reach server", nil))

	require.Error(t, chat.SelectCounterpart(context.Background(), "7"))
	state := chat.Snapshot()
	assert.Equal(t, "7", state.ActiveCounterpartID)
	assert.Empty(t, state.Messages)
	assert.False(t, state.Loading)
	assert.Equal(t, "failed to reach server", state.LastError)
}

func TestHistoryTimeoutSurfacesAsLastError(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := NewChatUseCase(identityOf("1"), repo, nil, nil, 20*time.Millisecond)
	repo.On("GetConversation", mock.Anything, "7").Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, errors.Timeout("request timed out", context.DeadlineExceeded))

	err := chat.SelectCounterpart(context.Background(), "7")
	assert.True(t, errors.Is(err, "TIMEOUT"))
	state := chat.Snapshot()
	assert.False(t, state.Loading)
	assert.Equal(t, "request timed out", state.LastError)
}

func TestRefreshMergesNewMessages(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))
	selectWith(t, chat, repo, "7", `[{"message_id": 1, "sender_id": "7", "receiver_id": "1", "content": "hi"}]`)
	assert.True(t, chat.IngestPush(message(3, "7", "1", "pushed")))

	repo.On("GetConversation", mock.Anything, "7").Return(records(t, `[
		{"message_id": 1, "sender_id": "7", "receiver_id": "1", "content": "hi"},
		{"message_id": 2, "sender_id": "1", "receiver_id": "7", "content": "missed"},
		{"message_id": 3, "sender_id": "7", "receiver_id": "1", "content": "pushed"}
	]`), nil).Once()

	require.NoError(t, chat.Refresh(context.Background()))
	assert.Equal(t, []int64{1, 3, 2}, ids(chat.Snapshot().Messages))
}

func TestSubscribeNotifiesAndReset(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))

	updates, cancel := chat.Subscribe()
	chat.SetConnectionStatus(entity.ConnectionConnected)

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no notification after status change")
	}
	assert.Equal(t, entity.ConnectionConnected, chat.Snapshot().Connection)

	selectWith(t, chat, repo, "7", `[{"message_id": 1, "sender_id": "7", "receiver_id": "1", "content": "hi"}]`)
	chat.Reset()

	state := chat.Snapshot()
	assert.Empty(t, state.ActiveCounterpartID)
	assert.Empty(t, state.Messages)
	assert.Equal(t, entity.ConnectionIdle, state.Connection)

	cancel()
	cancel()
	_, open := <-updates
	for open {
		_, open = <-updates
	}
}

func TestLateSendDoesNotTouchNewConversation(t *testing.T) {
	for _, tc := range []struct {
		name    string
		record  *entity.MessageRecord
		sendErr error
	}{
		{name: "success", record: recordOf(t, `{"message_id": 42, "sender_id": "1", "receiver_id": "A", "content": "hi"}`)},
		{name: "failure", sendErr: errors.Unavailable("failed to reach server", nil)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockConversationRepo)
			chat := newTestChat(repo, identityOf("1"))
			selectWith(t, chat, repo, "A", `[]`)

			started := make(chan struct{})
			release := make(chan struct{})
			repo.On("SendMessage", mock.Anything, "A", "hi").Run(func(mock.Arguments) {
				close(started)
				<-release
			}).Return(tc.record, tc.sendErr)
			repo.On("GetConversation", mock.Anything, "B").Return(nil, errors.Internal("boom", nil))

			done := make(chan error, 1)
			go func() { done <- chat.Send(context.Background(), "hi") }()
			<-started

			require.Error(t, chat.SelectCounterpart(context.Background(), "B"))
			require.Equal(t, "boom", chat.Snapshot().LastError)

			close(release)
			sendErr := <-done
			if tc.sendErr != nil {
				assert.Error(t, sendErr)
			} else {
				assert.NoError(t, sendErr)
			}

			state := chat.Snapshot()
			assert.Equal(t, "B", state.ActiveCounterpartID)
			assert.Equal(t, "boom", state.LastError)
			assert.Empty(t, state.Messages)
		})
	}
}

func TestAcknowledgedSendSurvivesHistoryFailure(t *testing.T) {
	repo := new(mockConversationRepo)
	chat := newTestChat(repo, identityOf("1"))

	started := make(chan struct{})
	release := make(chan struct{})
	repo.On("GetConversation", mock.Anything, "7").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil, errors.Unavailable("failed to reach server", nil))
	repo.On("SendMessage", mock.Anything, "7", "hi").
		Return(recordOf(t, `{"message_id": 60, "sender_id": "1", "receiver_id": "7", "content": "hi"}`), nil)

	done := make(chan error, 1)
	go func() { done <- chat.SelectCounterpart(context.Background(), "7") }()
	<-started

	require.NoError(t, chat.Send(context.Background(), "hi"))
	assert.True(t, chat.IngestPush(message(61, "7", "1", "pushed")))

	close(release)
	require.Error(t, <-done)

	state := chat.Snapshot()
	assert.Equal(t, []int64{60}, ids(state.Messages))
	assert.Equal(t, "failed to reach server", state.LastError)
}
