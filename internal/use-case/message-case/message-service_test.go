package message_service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	conversation_repo "github.com/quocdatk18/appchat-sub000/internal/repo/conversation"
	message_repo "github.com/quocdatk18/appchat-sub000/internal/repo/message"
	user_repo "github.com/quocdatk18/appchat-sub000/internal/repo/user"
	conversation_service "github.com/quocdatk18/appchat-sub000/internal/use-case/conversation-case"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	clock         *fakeClock
	messages      MessageServiceContract
	conversations conversation_service.ConversationServiceContract
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	users := user_repo.NewMemoryRepo()
	for _, u := range []entity.User{
		{ID: "u1", Username: "one"},
		{ID: "u2", Username: "two"},
		{ID: "u3", Username: "three"},
	} {
		u := u
		require.Nil(t, users.SaveUser(ctx, &u))
	}

	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	conversations := conversation_service.NewConversationService(conversation_repo.NewMemoryRepo(), users, conversation_service.Options{Now: clock.Now})
	messages := NewMessageService(message_repo.NewMemoryRepo(), users, conversations, Options{RecallWindow: 5 * time.Minute, Now: clock.Now})

	return &fixture{clock: clock, messages: messages, conversations: conversations}
}

func (f *fixture) send(t *testing.T, senderID, conversationID, content string) *entity.MessageView {
	t.Helper()
	f.clock.Advance(time.Second)
	view, err := f.messages.Create(context.Background(), senderID, conversationID, entity.MessagePayload{Content: content})
	require.Nil(t, err)
	return view
}

func TestCreate_RoundTripPreservesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)

	created, err := f.messages.Create(ctx, "u1", conv.ID, entity.MessagePayload{
		Content:      "look",
		Type:         entity.MessageTypeImage,
		MediaURL:     "https://cdn.example/cat.png",
		Mimetype:     "image/png",
		OriginalName: "cat.png",
	})
	require.Nil(t, err)
	assert.Equal(t, "one", created.Sender.Username)

	list, err := f.messages.ListByConversation(ctx, conv.ID, "u2")
	require.Nil(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "look", got.Content)
	assert.Equal(t, entity.MessageTypeImage, got.Type)
	assert.Equal(t, "https://cdn.example/cat.png", got.MediaURL)
	assert.Equal(t, "u1", got.SenderID)
	assert.Equal(t, entity.MessageActive, got.Status)
	assert.Equal(t, "one", got.Sender.Username)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)

	_, err = f.messages.Create(ctx, "u1", conv.ID, entity.MessagePayload{Content: "   "})
	assert.True(t, err.Has(app_error.KindValidation))

	_, err = f.messages.Create(ctx, "u1", conv.ID, entity.MessagePayload{Content: "hi", Type: "sticker"})
	assert.True(t, err.Has(app_error.KindValidation))

	_, err = f.messages.Create(ctx, "u3", conv.ID, entity.MessagePayload{Content: "hi"})
	assert.True(t, err.Has(app_error.KindPermission))

	_, err = f.messages.Create(ctx, "u1", "missing", entity.MessagePayload{Content: "hi"})
	assert.True(t, err.Has(app_error.KindNotFound))
}

func TestCreate_UpdatesLastMessageAndUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)

	f.send(t, "u1", conv.ID, "hello")
	_, err = f.messages.Create(ctx, "u1", conv.ID, entity.MessagePayload{Type: entity.MessageTypeFile, MediaURL: "https://cdn.example/a.pdf"})
	require.Nil(t, err)

	summary, err := f.conversations.Get(ctx, "u2", conv.ID)
	require.Nil(t, err)
	assert.Equal(t, "[file]", summary.Conversation.LastMessage)
	assert.Equal(t, entity.MessageTypeFile, summary.Conversation.LastMessageType)
	assert.Equal(t, "u1", summary.Conversation.LastMessageSenderID)
	assert.EqualValues(t, 2, summary.Overlay.UnreadCount)

	sender, err := f.conversations.Get(ctx, "u1", conv.ID)
	require.Nil(t, err)
	assert.EqualValues(t, 0, sender.Overlay.UnreadCount)
}

func TestRecall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)
	msg := f.send(t, "u1", conv.ID, "oops")

	_, err = f.messages.Recall(ctx, msg.ID, "u2")
	require.NotNil(t, err)
	assert.Equal(t, app_error.KindPermission, err.Kind)

	list, lerr := f.messages.ListByConversation(ctx, conv.ID, "u1")
	require.Nil(t, lerr)
	assert.Equal(t, entity.MessageActive, list[0].Status, "failed recall leaves the message active")

	recalled, err := f.messages.Recall(ctx, msg.ID, "u1")
	require.Nil(t, err)
	assert.Equal(t, entity.MessageRecalled, recalled.Status)
	require.NotNil(t, recalled.RecallAt)

	_, err = f.messages.Recall(ctx, msg.ID, "u1")
	require.NotNil(t, err)
	assert.Equal(t, app_error.KindTerminalState, err.Kind)

	_, err = f.messages.Recall(ctx, "nope", "u1")
	assert.True(t, err.Has(app_error.KindNotFound))
}

func TestRecall_WindowExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)
	msg := f.send(t, "u1", conv.ID, "late")

	f.clock.Advance(5*time.Minute + time.Millisecond)

	_, err = f.messages.Recall(ctx, msg.ID, "u1")
	require.NotNil(t, err)
	assert.Equal(t, app_error.KindTimeWindow, err.Kind)
}

func TestDeleteForAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	group, err := f.conversations.CreateGroup(ctx, "u1", []string{"u2", "u3"}, "trio")
	require.Nil(t, err)
	msg := f.send(t, "u2", group.ID, "spam")

	_, err = f.messages.DeleteForAll(ctx, msg.ID, "u2")
	assert.True(t, err.Has(app_error.KindPermission), "only the admin may delete for everyone")

	deleted, err := f.messages.DeleteForAll(ctx, msg.ID, "u1")
	require.Nil(t, err)
	assert.Equal(t, entity.MessageDeletedForAll, deleted.Status)
	assert.Equal(t, "u1", deleted.DeletedForAllBy)

	_, err = f.messages.DeleteForAll(ctx, msg.ID, "u1")
	require.NotNil(t, err)
	assert.Equal(t, app_error.KindTerminalState, err.Kind)

	// the sender cannot recall a tombstoned message either
	_, err = f.messages.Recall(ctx, msg.ID, "u2")
	assert.True(t, err.Has(app_error.KindTerminalState))

	// tombstones may still be hidden per viewer
	hidden, err := f.messages.DeleteForUser(ctx, msg.ID, "u3")
	require.Nil(t, err)
	assert.Equal(t, []string{"u3"}, hidden.DeletedBy)
}

func TestDeleteForAll_NotAvailableInDirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)
	msg := f.send(t, "u1", conv.ID, "hi")

	_, err = f.messages.DeleteForAll(ctx, msg.ID, "u1")
	require.NotNil(t, err)
	assert.Equal(t, app_error.KindPermission, err.Kind)
}

func TestDeleteForUser_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)
	msg := f.send(t, "u1", conv.ID, "hide me")
	f.send(t, "u1", conv.ID, "keep me")

	_, err = f.messages.DeleteForUser(ctx, msg.ID, "u2")
	require.Nil(t, err)
	again, err := f.messages.DeleteForUser(ctx, msg.ID, "u2")
	require.Nil(t, err)
	assert.Equal(t, []string{"u2"}, again.DeletedBy)

	list, err := f.messages.ListByConversation(ctx, conv.ID, "u2")
	require.Nil(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep me", list[0].Content)

	senderView, err := f.messages.ListByConversation(ctx, conv.ID, "u1")
	require.Nil(t, err)
	assert.Len(t, senderView, 2)
}

func TestMarkSeen_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)
	msg := f.send(t, "u1", conv.ID, "seen?")

	for i := 0; i < 2; i++ {
		seen, err := f.messages.MarkSeen(ctx, msg.ID, "u2")
		require.Nil(t, err)
		assert.Equal(t, []string{"u2"}, seen.SeenBy)
	}

	_, err = f.messages.MarkSeen(ctx, msg.ID, "u3")
	assert.True(t, err.Has(app_error.KindPermission))
}

func TestListByConversation_HiddenThenReopened(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)
	f.send(t, "u1", conv.ID, "before 1")
	f.send(t, "u2", conv.ID, "before 2")

	f.clock.Advance(time.Second)
	require.Nil(t, f.conversations.HideForUser(ctx, "u2", conv.ID))

	after := []string{
		f.send(t, "u1", conv.ID, "after 1").ID,
		f.send(t, "u1", conv.ID, "after 2").ID,
		f.send(t, "u2", conv.ID, "after 3").ID,
	}

	list, err := f.messages.ListByConversation(ctx, conv.ID, "u2")
	require.Nil(t, err)
	require.Len(t, list, 3)
	for i, view := range list {
		assert.Equal(t, after[i], view.ID)
	}

	full, err := f.messages.ListByConversation(ctx, conv.ID, "u1")
	require.Nil(t, err)
	assert.Len(t, full, 5, "hiding never affects other members")
}

func TestHiddenConversationReturnsWhenOwnerReopensAndSends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)
	f.send(t, "u2", conv.ID, "old")

	f.clock.Advance(time.Second)
	require.Nil(t, f.conversations.HideForUser(ctx, "u1", conv.ID))
	list, err := f.conversations.ListForUser(ctx, "u1")
	require.Nil(t, err)
	require.Empty(t, list)

	reopened, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)
	assert.Equal(t, conv.ID, reopened.ID)

	list, err = f.conversations.ListForUser(ctx, "u1")
	require.Nil(t, err)
	require.Len(t, list, 1, "resolving the pair re-lists the conversation")

	require.Nil(t, f.conversations.HideForUser(ctx, "u1", conv.ID))
	sent := f.send(t, "u1", conv.ID, "hello again")

	list, err = f.conversations.ListForUser(ctx, "u1")
	require.Nil(t, err)
	require.Len(t, list, 1, "the sender's own message re-lists the conversation")
	assert.Equal(t, conv.ID, list[0].Conversation.ID)

	history, err := f.messages.ListByConversation(ctx, conv.ID, "u1")
	require.Nil(t, err)
	require.Len(t, history, 1, "messages before the hide point stay filtered")
	assert.Equal(t, sent.ID, history[0].ID)
}

func TestListByConversation_HidePointWithinSameMillisecond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.conversations.ResolveOrCreateDirect(ctx, "u1", "u2")
	require.Nil(t, err)

	// the clock stands still: message, hide and reply share one millisecond
	create := func(sender, content string) *entity.MessageView {
		view, createErr := f.messages.Create(ctx, sender, conv.ID, entity.MessagePayload{Content: content})
		require.Nil(t, createErr)
		return view
	}
	before := create("u1", "before")
	require.Nil(t, f.conversations.HideForUser(ctx, "u2", conv.ID))
	after := create("u1", "after")
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
	assert.Less(t, before.Seq, after.Seq)

	list, err := f.messages.ListByConversation(ctx, conv.ID, "u2")
	require.Nil(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, after.ID, list[0].ID)
}
