package conversation_repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

// testDatabase opens a throwaway database on CHATAPP_TEST_MONGO_URL.
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("CHATAPP_TEST_MONGO_URL")
	if uri == "" {
		t.Skip("CHATAPP_TEST_MONGO_URL not set")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database("appchat_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func newMongoRepo(t *testing.T) *ConversationRepo {
	t.Helper()
	repo := NewConversationRepo(testDatabase(t))
	require.NoError(t, repo.EnsureIndexes(context.Background()))
	return repo
}

func TestConversationRepo_PairKeyIsUnique(t *testing.T) {
	repo := newMongoRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	pairKey := entity.DirectPairKey("u1", "u2")
	first := &entity.Conversation{ID: uuid.NewString(), Members: []string{"u1", "u2"}, CreatedBy: "u1", PairKey: pairKey, CreatedAt: now, UpdatedAt: now}
	require.Nil(t, repo.Insert(ctx, first))

	second := &entity.Conversation{ID: uuid.NewString(), Members: []string{"u2", "u1"}, CreatedBy: "u2", PairKey: pairKey, CreatedAt: now, UpdatedAt: now}
	assert.True(t, repo.Insert(ctx, second).Has(app_error.KindConflict))

	found, err := repo.FindDirect(ctx, pairKey)
	require.Nil(t, err)
	assert.Equal(t, first.ID, found.ID)

	// groups carry no pair key and never collide
	for i := 0; i < 2; i++ {
		group := &entity.Conversation{ID: uuid.NewString(), IsGroup: true, Members: []string{"u1", "u2", "u3"}, CreatedBy: "u1", CreatedAt: now, UpdatedAt: now}
		require.Nil(t, repo.Insert(ctx, group))
	}
}

func TestConversationRepo_SequenceAndHidePoint(t *testing.T) {
	repo := newMongoRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	conv := &entity.Conversation{ID: uuid.NewString(), IsGroup: true, Members: []string{"u1", "u2", "u3"}, CreatedBy: "u1", CreatedAt: now, UpdatedAt: now}
	require.Nil(t, repo.Insert(ctx, conv))

	for want := int64(1); want <= 3; want++ {
		seq, err := repo.NextSeq(ctx, conv.ID)
		require.Nil(t, err)
		assert.Equal(t, want, seq)
	}
	_, err := repo.NextSeq(ctx, "missing")
	assert.True(t, err.Has(app_error.KindNotFound))

	require.Nil(t, repo.IncrementUnread(ctx, conv.ID, []string{"u2"}))
	require.Nil(t, repo.HideForUser(ctx, "u2", conv.ID, now))

	overlay, err := repo.FindOverlay(ctx, "u2", conv.ID)
	require.Nil(t, err)
	assert.True(t, overlay.IsDeleted)
	assert.Equal(t, int64(3), overlay.HiddenThroughSeq)
	assert.Zero(t, overlay.UnreadCount)

	require.Nil(t, repo.RestoreForUser(ctx, "u2", conv.ID))
	overlay, err = repo.FindOverlay(ctx, "u2", conv.ID)
	require.Nil(t, err)
	assert.False(t, overlay.IsDeleted)
	require.NotNil(t, overlay.LastDeletedAt)
	assert.True(t, now.Equal(*overlay.LastDeletedAt))
	assert.Equal(t, int64(3), overlay.HiddenThroughSeq)

	// restoring a conversation that was never hidden creates no overlay
	require.Nil(t, repo.RestoreForUser(ctx, "u3", conv.ID))
	overlays, err := repo.FindOverlays(ctx, "u3")
	require.Nil(t, err)
	assert.Empty(t, overlays)
}
