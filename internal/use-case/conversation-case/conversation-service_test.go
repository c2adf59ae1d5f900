package conversation_service

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
	user_repo "github.com/quocdatk18/appchat-sub000/internal/repo/user"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T) (*ConversationService, *user_repo.MemoryRepo) {
	t.Helper()
	users := user_repo.NewMemoryRepo()
	ctx := context.Background()
	for _, u := range []entity.User{
		{ID: "alice", Username: "Alice"},
		{ID: "bob", Username: "Bobby"},
		{ID: "carol", Username: "Carol"},
		{ID: "dave", Username: "Dave"},
	} {
		u := u
		require.Nil(t, users.SaveUser(ctx, &u))
	}

	clock := &stepClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := NewConversationService(conversation_repo.NewMemoryRepo(), users, Options{MemberPreview: 2, Now: clock.Now})
	return svc.(*ConversationService), users
}

func TestResolveOrCreateDirect_ConcurrentCallersShareOneConversation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := svc.ResolveOrCreateDirect(ctx, a, b)
			if assert.Nil(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	list, err := svc.ListForUser(ctx, "alice")
	require.Nil(t, err)
	assert.Len(t, list, 1)
}

func TestResolveOrCreateDirect_RejectsSelfAndBlank(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ResolveOrCreateDirect(ctx, "alice", "alice")
	assert.True(t, err.Has(app_error.KindValidation))

	_, err = svc.ResolveOrCreateDirect(ctx, "", "bob")
	assert.True(t, err.Has(app_error.KindValidation))
}

func TestCreateGroup_MemberCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		members []string
		wantErr bool
	}{
		{name: "creator plus one", members: []string{"bob"}, wantErr: true},
		{name: "duplicates collapse", members: []string{"bob", "bob", "alice"}, wantErr: true},
		{name: "blank ids ignored", members: []string{"bob", " ", ""}, wantErr: true},
		{name: "three distinct", members: []string{"bob", "carol"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := svc.CreateGroup(ctx, "alice", tt.members, " team ")
			if tt.wantErr {
				require.NotNil(t, err)
				assert.Equal(t, app_error.KindValidation, err.Kind)
				return
			}
			require.Nil(t, err)
			assert.True(t, conv.IsGroup)
			assert.Equal(t, "alice", conv.Members[0])
			assert.Equal(t, "alice", conv.CreatedBy)
			assert.Equal(t, "team", conv.Name)
			assert.True(t, IsConversationAdmin(conv, "alice"))
			assert.False(t, IsConversationAdmin(conv, "bob"))
		})
	}
}

func TestListForUser_SummariesAndOrdering(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	direct, err := svc.ResolveOrCreateDirect(ctx, "alice", "bob")
	require.Nil(t, err)
	group, err := svc.CreateGroup(ctx, "alice", []string{"bob", "carol", "dave"}, "Weekend")
	require.Nil(t, err)

	// bump the direct conversation so it sorts first
	require.Nil(t, svc.UpdateLastMessage(ctx, direct.ID, "hello", entity.MessageTypeText, "bob"))

	list, err := svc.ListForUser(ctx, "alice")
	require.Nil(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, direct.ID, list[0].Conversation.ID)
	assert.Equal(t, "hello", list[0].Conversation.LastMessage)
	require.NotNil(t, list[0].Peer)
	assert.Equal(t, "Bobby", list[0].Peer.Username)

	assert.Equal(t, group.ID, list[1].Conversation.ID)
	assert.Nil(t, list[1].Peer)
	assert.Len(t, list[1].MemberPreview, 2, "preview is bounded")
}

func TestSearch_MatchesGroupNameAndUsernames(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	direct, err := svc.ResolveOrCreateDirect(ctx, "alice", "bob")
	require.Nil(t, err)
	group, err := svc.CreateGroup(ctx, "alice", []string{"carol", "dave"}, "Book Club")
	require.Nil(t, err)
	_, err = svc.ResolveOrCreateDirect(ctx, "carol", "dave")
	require.Nil(t, err)

	found, err := svc.Search(ctx, "alice", "BOB")
	require.Nil(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, direct.ID, found[0].Conversation.ID)

	found, err = svc.Search(ctx, "alice", "club")
	require.Nil(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, group.ID, found[0].Conversation.ID)

	// carol/dave direct chat is not alice's
	found, err = svc.Search(ctx, "alice", "dave")
	require.Nil(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, group.ID, found[0].Conversation.ID)
}

func TestHideForUser_OnlyAffectsRequester(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.ResolveOrCreateDirect(ctx, "alice", "bob")
	require.Nil(t, err)

	require.Nil(t, svc.HideForUser(ctx, "alice", conv.ID))

	aliceList, err := svc.ListForUser(ctx, "alice")
	require.Nil(t, err)
	assert.Empty(t, aliceList)

	bobList, err := svc.ListForUser(ctx, "bob")
	require.Nil(t, err)
	assert.Len(t, bobList, 1)

	overlay, err := svc.Overlay(ctx, "alice", conv.ID)
	require.Nil(t, err)
	assert.True(t, overlay.IsDeleted)
	require.NotNil(t, overlay.LastDeletedAt)

	// a new message from bob brings it back for alice
	require.Nil(t, svc.IncrementUnreadCount(ctx, conv.ID, "bob"))
	aliceList, err = svc.ListForUser(ctx, "alice")
	require.Nil(t, err)
	require.Len(t, aliceList, 1)
	assert.EqualValues(t, 1, aliceList[0].Overlay.UnreadCount)
	assert.NotNil(t, aliceList[0].Overlay.LastDeletedAt, "hide point survives re-appearing")
}

func TestMarkReadAndSettings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.ResolveOrCreateDirect(ctx, "alice", "bob")
	require.Nil(t, err)
	require.Nil(t, svc.IncrementUnreadCount(ctx, conv.ID, "alice"))
	require.Nil(t, svc.IncrementUnreadCount(ctx, conv.ID, "alice"))

	summary, err := svc.Get(ctx, "bob", conv.ID)
	require.Nil(t, err)
	assert.EqualValues(t, 2, summary.Overlay.UnreadCount)

	require.Nil(t, svc.MarkRead(ctx, "bob", conv.ID))
	summary, err = svc.Get(ctx, "bob", conv.ID)
	require.Nil(t, err)
	assert.EqualValues(t, 0, summary.Overlay.UnreadCount)
	assert.NotNil(t, summary.Overlay.LastReadAt)

	pinned := true
	overlay, err := svc.SetSettings(ctx, "bob", conv.ID, &pinned, nil)
	require.Nil(t, err)
	assert.True(t, overlay.IsPinned)
	assert.False(t, overlay.IsMuted)

	_, err = svc.SetSettings(ctx, "bob", conv.ID, nil, nil)
	assert.True(t, err.Has(app_error.KindValidation))

	_, err = svc.Get(ctx, "carol", conv.ID)
	assert.True(t, err.Has(app_error.KindPermission))
}

func TestMembers_AdminRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "alice", []string{"bob", "carol"}, "g")
	require.Nil(t, err)

	updated, err := svc.AddMembers(ctx, "bob", group.ID, []string{"dave", "carol"})
	require.Nil(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, updated.Members)

	_, err = svc.RemoveMembers(ctx, "bob", group.ID, []string{"carol"})
	assert.True(t, err.Has(app_error.KindPermission), "non-admin cannot remove others")

	_, err = svc.RemoveMembers(ctx, "alice", group.ID, []string{"alice"})
	assert.True(t, err.Has(app_error.KindPermission), "creator cannot be removed")

	updated, err = svc.RemoveMembers(ctx, "dave", group.ID, []string{"dave"})
	require.Nil(t, err)
	assert.NotContains(t, updated.Members, "dave")

	updated, err = svc.RemoveMembers(ctx, "alice", group.ID, []string{"carol"})
	require.Nil(t, err)
	assert.Equal(t, []string{"alice", "bob"}, updated.Members)

	direct, err := svc.ResolveOrCreateDirect(ctx, "alice", "bob")
	require.Nil(t, err)
	_, err = svc.AddMembers(ctx, "alice", direct.ID, []string{"carol"})
	assert.True(t, err.Has(app_error.KindValidation))

	_, err = svc.AddMembers(ctx, "dave", group.ID, []string{"dave"})
	assert.True(t, err.Has(app_error.KindPermission), "outsiders cannot add")
}
