package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatrocket-server/internal/proto"
	"github.com/vovakirdan/chatrocket-server/internal/ratelimit"
	"github.com/vovakirdan/chatrocket-server/internal/store"
)

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")

	resp := env.do(t, http.MethodGet, "/api/messages/conversations", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/messages/conversations", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	require.Equal(t, "unauthorized", body.Code)

	resp = env.do(t, http.MethodGet, "/api/messages/conversations", alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "dave", Password: "password123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	registered := decode[AuthResponse](t, resp)
	require.NotEmpty(t, registered.Token)
	require.Equal(t, "dave", registered.User.Username)

	resp = env.do(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "dave", Password: "password123"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "dave", Password: "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, registered.User.ID, decode[AuthResponse](t, resp).User.ID)

	resp = env.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "dave", Password: "nope-nope"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendMessageREST(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	resp := env.do(t, http.MethodPost, "/api/messages", alice.token, proto.SendData{RecipientID: bob.ID, Message: "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decode[proto.Message](t, resp)
	require.Equal(t, alice.ID, msg.Sender)
	require.Equal(t, "hello", msg.Text)
	require.False(t, msg.Seen)
	require.NotEmpty(t, msg.ConversationID)

	tests := []struct {
		name   string
		body   proto.SendData
		status int
		code   string
	}{
		{"too long", proto.SendData{RecipientID: bob.ID, Message: strings.Repeat("a", 501)}, http.StatusBadRequest, "bad_request"},
		{"empty", proto.SendData{RecipientID: bob.ID}, http.StatusBadRequest, "bad_request"},
		{"self", proto.SendData{RecipientID: alice.ID, Message: "me"}, http.StatusBadRequest, "bad_request"},
		{"unknown recipient", proto.SendData{RecipientID: "ghost", Message: "hi"}, http.StatusNotFound, "not_found"},
		{"inline media without storage", proto.SendData{RecipientID: bob.ID, Image: "data:image/png;base64,AAAA"}, http.StatusBadGateway, "upload_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/messages", alice.token, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, tt.code, decode[ErrorResponse](t, resp).Code)
		})
	}

	// Hosted media passes straight through.
	resp = env.do(t, http.MethodPost, "/api/messages", alice.token, proto.SendData{RecipientID: bob.ID, Image: "https://cdn.test/a.png"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "https://cdn.test/a.png", decode[proto.Message](t, resp).Image)
}

func TestHistoryConversationsAndSeenREST(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	resp := env.do(t, http.MethodGet, "/api/messages/"+bob.ID, alice.token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, text := range []string{"first", "second"} {
		resp := env.do(t, http.MethodPost, "/api/messages", alice.token, proto.SendData{RecipientID: bob.ID, Message: text})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		time.Sleep(time.Millisecond)
	}

	resp = env.do(t, http.MethodGet, "/api/messages/"+alice.ID, bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]proto.Message](t, resp)
	require.Len(t, history, 2)
	require.Equal(t, "first", history[0].Text)
	require.Equal(t, "second", history[1].Text)
	convID := history[0].ConversationID

	resp = env.do(t, http.MethodGet, "/api/messages/conversations", bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	convs := decode[[]proto.Conversation](t, resp)
	require.Len(t, convs, 1)
	require.Equal(t, convID, convs[0].ID)
	require.Len(t, convs[0].Participants, 1)
	require.Equal(t, "alice", convs[0].Participants[0].Username)
	require.False(t, convs[0].Participants[0].Online)
	require.Equal(t, "second", convs[0].LastMessage.Text)

	resp = env.do(t, http.MethodPost, "/api/messages/seen", carol.token, proto.MarkSeenData{ConversationID: convID})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/messages/seen", bob.token, proto.MarkSeenData{ConversationID: convID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, decode[SeenResponse](t, resp).Updated)

	resp = env.do(t, http.MethodPost, "/api/messages/seen", bob.token, proto.MarkSeenData{ConversationID: convID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, decode[SeenResponse](t, resp).Updated)

	resp = env.do(t, http.MethodPost, "/api/messages/seen", bob.token, proto.MarkSeenData{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSharePostREST(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	post := &store.Post{PostedBy: bob.ID, Text: "hello world"}
	require.NoError(t, env.store.CreatePost(t.Context(), post))

	resp := env.do(t, http.MethodPost, "/api/posts/share", alice.token, proto.ShareData{PostID: post.ID, RecipientID: bob.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decode[proto.Message](t, resp)
	require.Equal(t, post.ID, msg.PostID)
	require.Equal(t, "@bob shared a post", msg.Text)

	resp = env.do(t, http.MethodPost, "/api/posts/share", alice.token, proto.ShareData{PostID: "ghost", RecipientID: bob.ID})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchUsersExcludesSelf(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")
	env.register(t, "alicia")

	resp := env.do(t, http.MethodGet, "/api/users/search?q=ali", alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decode[[]proto.User](t, resp)
	require.Len(t, users, 1)
	require.Equal(t, "alicia", users[0].Username)

	resp = env.do(t, http.MethodGet, "/api/users/search?q=a", alice.token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitMiddleware(t *testing.T) {
	env := newTestEnv(t, ratelimit.NewMemory(2, time.Minute))
	alice := env.register(t, "alice")

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodGet, "/api/messages/conversations", alice.token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := env.do(t, http.MethodGet, "/api/messages/conversations", alice.token, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "rate_limited", decode[ErrorResponse](t, resp).Code)
}
