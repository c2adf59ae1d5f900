package timeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedView(now time.Time) *View {
	return NewView("c1", Options{Now: func() time.Time { return now }})
}

func serverMsg(id, sender, content string, at time.Time) *entity.Message {
	return &entity.Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       sender,
		Content:        content,
		Type:           entity.MessageTypeText,
		Status:         entity.MessageActive,
		CreatedAt:      at,
	}
}

func ids(v *View) []string {
	var out []string
	for _, m := range v.Messages() {
		out = append(out, m.ID)
	}
	return out
}

func TestNewLocalID(t *testing.T) {
	id := NewLocalID()
	assert.True(t, IsLocalID(id))
	assert.NotEqual(t, id, NewLocalID())
	assert.False(t, IsLocalID("m1"))
}

func TestReconcile_ReplacesPlaceholderInPlace(t *testing.T) {
	v := fixedView(base)
	v.Reconcile(serverMsg("m0", "u2", "earlier", base.Add(-time.Second)))
	v.AddOptimistic("temp_1", "hi", "u1")

	changed := v.Reconcile(serverMsg("m1", "u1", "hi", base.Add(2*time.Second)))

	assert.True(t, changed)
	assert.Equal(t, []string{"m0", "m1"}, ids(v))
}

func TestReconcile_BroadcastThenAckRendersOnce(t *testing.T) {
	v := fixedView(base)
	v.AddOptimistic("temp_1", "hi", "u1")
	msg := serverMsg("m1", "u1", "hi", base)

	v.Reconcile(msg)
	v.Confirm("temp_1", msg)

	assert.Equal(t, []string{"m1"}, ids(v))
}

func TestConfirm_AckThenBroadcastRendersOnce(t *testing.T) {
	v := fixedView(base)
	v.AddOptimistic("temp_1", "hi", "u1")
	msg := serverMsg("m1", "u1", "hi", base)

	assert.True(t, v.Confirm("temp_1", msg))
	assert.False(t, v.Reconcile(msg))

	assert.Equal(t, []string{"m1"}, ids(v))
}

func TestReconcile_OutsideMatchWindowInsertsNew(t *testing.T) {
	v := fixedView(base)
	v.AddOptimistic("temp_1", "hi", "u1")

	v.Reconcile(serverMsg("m1", "u1", "hi", base.Add(2*time.Minute)))

	assert.Equal(t, []string{"temp_1", "m1"}, ids(v))
}

func TestReconcile_DifferentSenderNeverMatches(t *testing.T) {
	v := fixedView(base)
	v.AddOptimistic("temp_1", "hi", "u1")

	v.Reconcile(serverMsg("m1", "u2", "hi", base))

	assert.Equal(t, []string{"temp_1", "m1"}, ids(v))
}

func TestReconcile_FirstMatchingPlaceholderWins(t *testing.T) {
	v := fixedView(base)
	v.AddOptimistic("temp_1", "ok", "u1")
	v.AddOptimistic("temp_2", "ok", "u1")

	v.Reconcile(serverMsg("m1", "u1", "ok", base))

	assert.Equal(t, []string{"m1", "temp_2"}, ids(v))
}

func TestReconcile_InsertsByCreatedAt(t *testing.T) {
	v := fixedView(base)
	v.Reconcile(serverMsg("m3", "u1", "c", base.Add(3*time.Second)))
	v.Reconcile(serverMsg("m1", "u1", "a", base.Add(1*time.Second)))
	v.Reconcile(serverMsg("m2", "u1", "b", base.Add(2*time.Second)))
	v.Reconcile(serverMsg("m2b", "u2", "b2", base.Add(2*time.Second)))

	assert.Equal(t, []string{"m1", "m2", "m2b", "m3"}, ids(v))
}

func TestReconcile_DuplicateIDIsNoop(t *testing.T) {
	v := fixedView(base)
	msg := serverMsg("m1", "u1", "hi", base)

	assert.True(t, v.Reconcile(msg))
	assert.False(t, v.Reconcile(msg))
	assert.Equal(t, 1, v.Len())
}

func TestReconcile_MergesTerminalCopy(t *testing.T) {
	v := fixedView(base)
	v.Reconcile(serverMsg("m1", "u1", "hi", base))

	recalled := serverMsg("m1", "u1", "hi", base)
	at := base.Add(time.Minute)
	recalled.Status = entity.MessageRecalled
	recalled.RecallAt = &at
	recalled.SeenBy = []string{"u2"}

	assert.True(t, v.Reconcile(recalled))
	got, ok := v.Get("m1")
	require.True(t, ok)
	assert.Equal(t, entity.MessageRecalled, got.Status)
	assert.Equal(t, []string{"u2"}, got.SeenBy)
}

func TestDiscard(t *testing.T) {
	v := fixedView(base)
	v.AddOptimistic("temp_1", "hi", "u1")
	v.Reconcile(serverMsg("m1", "u1", "other", base))

	assert.True(t, v.Discard("temp_1"))
	assert.False(t, v.Discard("temp_1"))
	assert.False(t, v.Discard("m1"))
	assert.Equal(t, []string{"m1"}, ids(v))
}

func TestApplyMutation_Idempotent(t *testing.T) {
	v := fixedView(base)
	v.Reconcile(serverMsg("m1", "u1", "hi", base))

	cases := []Mutation{
		{Kind: MutationSeen, MessageID: "m1", UserID: "u2"},
		{Kind: MutationDeleteForUser, MessageID: "m1", UserID: "u3"},
		{Kind: MutationRecall, MessageID: "m1", At: base.Add(time.Minute)},
	}
	for _, m := range cases {
		assert.True(t, v.ApplyMutation(m), m.Kind)
		before := v.Messages()
		assert.False(t, v.ApplyMutation(m), m.Kind)
		assert.Equal(t, before, v.Messages(), m.Kind)
	}
}

func TestApplyMutation_TerminalStatesAreExclusive(t *testing.T) {
	v := fixedView(base)
	v.Reconcile(serverMsg("m1", "u1", "hi", base))

	require.True(t, v.ApplyMutation(Mutation{Kind: MutationDeleteForAll, MessageID: "m1", UserID: "u1", At: base}))
	assert.False(t, v.ApplyMutation(Mutation{Kind: MutationRecall, MessageID: "m1", At: base}))

	got, _ := v.Get("m1")
	assert.Equal(t, entity.MessageDeletedForAll, got.Status)
	assert.Equal(t, "u1", got.DeletedForAllBy)
	assert.Nil(t, got.RecallAt)

	// a tombstone can still be hidden per viewer
	assert.True(t, v.ApplyMutation(Mutation{Kind: MutationDeleteForUser, MessageID: "m1", UserID: "u2"}))
}

func TestApplyMutation_UnknownIDIgnored(t *testing.T) {
	v := fixedView(base)
	assert.False(t, v.ApplyMutation(Mutation{Kind: MutationRecall, MessageID: "missing"}))
	assert.Zero(t, v.Len())
}

func TestRender(t *testing.T) {
	v := fixedView(base)
	v.Reconcile(serverMsg("m1", "u1", "visible", base))
	v.Reconcile(serverMsg("m2", "u1", "secret", base.Add(time.Second)))
	v.Reconcile(serverMsg("m3", "u2", "gone", base.Add(2*time.Second)))
	v.Reconcile(serverMsg("m4", "u2", "hidden", base.Add(3*time.Second)))
	v.AddOptimistic("temp_1", "sending", "u1")

	v.ApplyMutation(Mutation{Kind: MutationRecall, MessageID: "m2", At: base})
	v.ApplyMutation(Mutation{Kind: MutationDeleteForAll, MessageID: "m3", UserID: "u1", At: base})
	v.ApplyMutation(Mutation{Kind: MutationDeleteForUser, MessageID: "m4", UserID: "u1"})

	rows := v.Render("u1")
	require.Len(t, rows, 4)

	assert.Equal(t, "visible", rows[0].Content)
	assert.False(t, rows[0].Tombstone)

	assert.True(t, rows[1].Tombstone)
	assert.Equal(t, RecalledText, rows[1].Content)

	assert.True(t, rows[2].Tombstone)
	assert.Equal(t, DeletedForAllText, rows[2].Content)

	assert.Equal(t, "temp_1", rows[3].ID)
	assert.True(t, rows[3].Pending)

	// another viewer still sees the message u1 hid
	assert.Len(t, v.Render("u2"), 5)
}

func TestView_ConcurrentReconcile(t *testing.T) {
	v := fixedView(base)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := serverMsg(string(rune('a'+i%26))+string(rune('A'+i/26)), "u1", "x", base.Add(time.Duration(i)*time.Second))
			v.Reconcile(msg)
			v.Reconcile(msg)
		}(i)
	}
	wg.Wait()

	msgs := v.Messages()
	require.Len(t, msgs, 50)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}
}
