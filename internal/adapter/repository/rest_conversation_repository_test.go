package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"holachat/internal/infrastructure/httpclient"
	"holachat/pkg/errors"
)

func newRestRepo(t *testing.T, handler http.HandlerFunc) *restConversationRepository {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"})
	client := httpclient.New(server.URL+"/api", tokens, time.Second)
	return NewRestConversationRepository(client).(*restConversationRepository)
}

func TestRestListPartnerIDs(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/messages/chat-users", r.URL.Path)
		w.Write([]byte(`[{"userId": "7"}, {"userId": 9}]`))
	})

	ids, err := repo.ListPartnerIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "9"}, ids)
}

func TestRestGetUsersByIDsPostsIDs(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/messages/users/by-ids", r.URL.Path)

		var body struct {
			IDs []string `json:"ids"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"7", "9"}, body.IDs)

		w.Write([]byte(`[{"userId": "7", "name": "Alice"}, {"userId": "9", "name": "Bob", "avatar": "/b.png"}]`))
	})

	users, err := repo.GetUsersByIDs(context.Background(), []string{"7", "9"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, "/b.png", *users[1].Avatar)
}

func TestRestGetConversationSkipsUndecodableRecords(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/messages/conversation/7", r.URL.Path)
		w.Write([]byte(`[
			{"message_id": 1, "sender_id": {"id": "1"}, "receiver_id": {"id": "7"}, "content": "a"},
			{"message_id": "nope", "sender_id": "1", "receiver_id": "7", "content": "b"},
			{"message_id": 3, "sender_id": "7", "receiver_id": "1", "content": "c"}
		]`))
	})

	records, err := repo.GetConversation(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.EqualValues(t, 1, records[0].MessageID)
	assert.EqualValues(t, 3, records[1].MessageID)
}

func TestRestSendMessage(t *testing.T) {
	repo := newRestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/messages", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"receiver_id": "7", "content": "hi"}, body)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message_id": 42, "sender_id": "1", "receiver_id": "7", "content": "hi"}`))
	})

	rec, err := repo.SendMessage(context.Background(), "7", "hi")
	require.NoError(t, err)

	msg, err := rec.Normalize()
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, "1", msg.SenderID)
}

func TestRestLoginSendsNoBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"code": "UNAUTHORIZED", "message": "Invalid credentials"}}`))
			return
		}
		w.Write([]byte(`{"id": 1, "name": "Ana", "role": "member", "token": "tok"}`))
	}))
	defer server.Close()

	repo := NewRestAuthRepository(httpclient.New(server.URL+"/api", nil, time.Second))

	session, err := repo.Login(context.Background(), "1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "1", string(session.ID))
	assert.Equal(t, "tok", session.Token)

	_, err = repo.Login(context.Background(), "1", "bad")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", errors.Message(err))
}
