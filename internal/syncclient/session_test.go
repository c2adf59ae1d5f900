package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/presence"
	conversation_repo "github.com/quocdatk18/appchat-sub000/internal/repo/conversation"
	message_repo "github.com/quocdatk18/appchat-sub000/internal/repo/message"
	user_repo "github.com/quocdatk18/appchat-sub000/internal/repo/user"
	conversation_service "github.com/quocdatk18/appchat-sub000/internal/use-case/conversation-case"
	message_service "github.com/quocdatk18/appchat-sub000/internal/use-case/message-case"
	user_service "github.com/quocdatk18/appchat-sub000/internal/use-case/user-case"
	chat_ws "github.com/quocdatk18/appchat-sub000/internal/websocket"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

type testServer struct {
	url   string
	group *entity.Conversation
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := user_repo.NewMemoryRepo()
	for _, u := range []entity.User{
		{ID: "u1", Username: "alice"},
		{ID: "u2", Username: "bob"},
		{ID: "u3", Username: "carol"},
		{ID: "u4", Username: "dave"},
	} {
		u := u
		require.Nil(t, users.SaveUser(ctx, &u))
	}

	conversations := conversation_service.NewConversationService(conversation_repo.NewMemoryRepo(), users, conversation_service.Options{})
	messages := message_service.NewMessageService(message_repo.NewMemoryRepo(), users, conversations, message_service.Options{})

	hub := chat_ws.NewHub()
	t.Cleanup(hub.Close)

	table := presence.NewTable(users)
	gateway := chat_ws.NewGateway(chat_ws.GatewayDeps{
		Hub:           hub,
		Presence:      table,
		Conversations: conversations,
		Messages:      messages,
		Users:         user_service.NewUserService(users, table),
		Redis:         rdb,
	}, chat_ws.Options{})

	srv := httptest.NewServer(chat_ws.NewWebSocketHandler(gateway, chat_ws.TrustedHeaderAuth("X-User-ID")))
	t.Cleanup(srv.Close)

	group, appErr := conversations.CreateGroup(ctx, "u1", []string{"u2", "u3"}, "team")
	require.Nil(t, appErr)

	return &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http"), group: group}
}

func (s *testServer) session(t *testing.T, userID string) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	sess, err := Dial(ctx, Options{
		URL:        s.url,
		Header:     http.Header{"X-User-ID": []string{userID}},
		UserID:     userID,
		AckTimeout: waitFor,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	require.NoError(t, sess.Register(ctx))
	return sess
}

func (s *testServer) joined(t *testing.T, userID string) *Session {
	t.Helper()
	sess := s.session(t, userID)
	_, err := sess.Join(context.Background(), s.group.ID)
	require.NoError(t, err)
	return sess
}

func TestSession_SendSettlesOptimisticEntry(t *testing.T) {
	srv := startServer(t)
	alice := srv.joined(t, "u1")
	bob := srv.joined(t, "u2")

	ack, err := alice.Send(context.Background(), srv.group.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, chat_dto.AckOK, ack.Status)
	require.NotEmpty(t, ack.MessageID)

	view, _ := alice.View(srv.group.ID)
	msgs := view.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, ack.MessageID, msgs[0].ID)

	// the sender's own broadcast must not add a second row
	assert.Never(t, func() bool { return view.Len() != 1 }, 200*time.Millisecond, tick)

	bobView, _ := bob.View(srv.group.ID)
	assert.Eventually(t, func() bool {
		got, ok := bobView.Get(ack.MessageID)
		return ok && got.Content == "hi"
	}, waitFor, tick)
}

func TestSession_EmptySendIsIgnored(t *testing.T) {
	srv := startServer(t)
	alice := srv.joined(t, "u1")

	ack, err := alice.Send(context.Background(), srv.group.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, chat_dto.AckIgnored, ack.Status)

	view, _ := alice.View(srv.group.ID)
	assert.Zero(t, view.Len())
}

func TestSession_RecallReachesOtherMembers(t *testing.T) {
	srv := startServer(t)
	alice := srv.joined(t, "u1")
	bob := srv.joined(t, "u2")

	ack, err := alice.Send(context.Background(), srv.group.ID, "oops")
	require.NoError(t, err)

	bobView, _ := bob.View(srv.group.ID)
	require.Eventually(t, func() bool { return bobView.Len() == 1 }, waitFor, tick)

	require.NoError(t, alice.Recall(context.Background(), ack.MessageID))

	assert.Eventually(t, func() bool {
		rows := bobView.Render("u2")
		return len(rows) == 1 && rows[0].Tombstone
	}, waitFor, tick)

	err = alice.Recall(context.Background(), ack.MessageID)
	assert.True(t, app_error.IsKind(err, app_error.KindTerminalState))
}

func TestSession_ErrorAckCarriesKind(t *testing.T) {
	srv := startServer(t)
	alice := srv.joined(t, "u1")
	bob := srv.joined(t, "u2")

	ack, err := alice.Send(context.Background(), srv.group.ID, "mine")
	require.NoError(t, err)

	err = bob.Recall(context.Background(), ack.MessageID)
	require.Error(t, err)
	assert.True(t, app_error.IsKind(err, app_error.KindPermission))

	outsider := srv.session(t, "u4")
	_, err = outsider.Join(context.Background(), srv.group.ID)
	assert.True(t, app_error.IsKind(err, app_error.KindPermission))
	_, opened := outsider.View(srv.group.ID)
	assert.False(t, opened)
}

func TestSession_DeleteForMeHidesOnlyForRequester(t *testing.T) {
	srv := startServer(t)
	alice := srv.joined(t, "u1")
	bob := srv.joined(t, "u2")

	ack, err := alice.Send(context.Background(), srv.group.ID, "keep")
	require.NoError(t, err)

	bobView, _ := bob.View(srv.group.ID)
	require.Eventually(t, func() bool { return bobView.Len() == 1 }, waitFor, tick)

	require.NoError(t, bob.DeleteForMe(context.Background(), ack.MessageID))
	assert.Eventually(t, func() bool { return len(bobView.Render("u2")) == 0 }, waitFor, tick)

	aliceView, _ := alice.View(srv.group.ID)
	assert.Len(t, aliceView.Render("u1"), 1)
}

func TestSession_SeenReceipt(t *testing.T) {
	srv := startServer(t)
	alice := srv.joined(t, "u1")
	bob := srv.joined(t, "u2")

	ack, err := alice.Send(context.Background(), srv.group.ID, "read me")
	require.NoError(t, err)

	require.NoError(t, bob.MarkSeen(context.Background(), srv.group.ID, ack.MessageID))

	aliceView, _ := alice.View(srv.group.ID)
	assert.Eventually(t, func() bool {
		got, ok := aliceView.Get(ack.MessageID)
		return ok && got.SeenByUser("u2")
	}, waitFor, tick)
}

func TestSession_SendDirectOpensConversation(t *testing.T) {
	srv := startServer(t)
	alice := srv.session(t, "u1")

	ack, err := alice.SendDirect(context.Background(), "u3", "hello carol")
	require.NoError(t, err)
	require.NotEmpty(t, ack.ConversationID)
	assert.NotEqual(t, srv.group.ID, ack.ConversationID)

	view, ok := alice.View(ack.ConversationID)
	require.True(t, ok)
	got, ok := view.Get(ack.MessageID)
	require.True(t, ok)
	assert.Equal(t, "hello carol", got.Content)

	again, err := alice.SendDirect(context.Background(), "u3", "second")
	require.NoError(t, err)
	assert.Equal(t, ack.ConversationID, again.ConversationID)
}

func TestSession_PresenceFollowsPeers(t *testing.T) {
	srv := startServer(t)
	alice := srv.joined(t, "u1")
	bob := srv.joined(t, "u2")

	assert.Eventually(t, func() bool {
		p, ok := alice.PresenceOf("u2")
		return ok && p.Online
	}, waitFor, tick)

	require.NoError(t, bob.Close())

	assert.Eventually(t, func() bool {
		p, ok := alice.PresenceOf("u2")
		return ok && !p.Online && p.LastSeen != nil
	}, waitFor, tick)
}

func TestSession_RequestsFailAfterClose(t *testing.T) {
	srv := startServer(t)
	alice := srv.session(t, "u1")

	require.NoError(t, alice.Close())
	<-alice.Done()

	err := alice.MarkSeen(context.Background(), srv.group.ID, "m1")
	assert.ErrorIs(t, err, ErrClosed)
}
