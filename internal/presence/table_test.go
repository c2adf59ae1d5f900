package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	user_repo "github.com/quocdatk18/appchat-sub000/internal/repo/user"
	user_service "github.com/quocdatk18/appchat-sub000/internal/use-case/user-case"
)

func TestRegisterUnregister_MirrorsToStore(t *testing.T) {
	ctx := context.Background()
	users := user_repo.NewMemoryRepo()
	table := NewTable(users)
	table.now = func() time.Time { return time.Date(2024, 3, 3, 8, 0, 0, 123_456_789, time.UTC) }

	require.Nil(t, table.Register(ctx, "u1", "conn-1"))
	assert.True(t, table.IsOnline("u1"))
	assert.Equal(t, 1, table.OnlineCount())

	stored, err := users.FindByID(ctx, "u1")
	require.Nil(t, err)
	assert.True(t, stored.IsOnline)

	userID, ok := table.Unregister(ctx, "conn-1")
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
	assert.False(t, table.IsOnline("u1"))

	live := table.LastSeenOf("u1")
	require.NotNil(t, live)

	// the REST status read reports exactly what the table holds
	status, err := user_service.NewUserService(users, table).GetStatus(ctx, "u1")
	require.Nil(t, err)
	assert.False(t, status.IsOnline)
	require.NotNil(t, status.LastSeen)
	assert.True(t, live.Equal(*status.LastSeen))
}

func TestUnregister_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	users := user_repo.NewMemoryRepo()
	table := NewTable(users)

	calls := 0
	clock := time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC)
	table.now = func() time.Time {
		calls++
		return clock.Add(time.Duration(calls) * time.Second)
	}

	require.Nil(t, table.Register(ctx, "u1", "conn-1"))

	_, first := table.Unregister(ctx, "conn-1")
	_, second := table.Unregister(ctx, "conn-1")
	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, calls, "lastSeen is stamped once")
}

func TestRegister_ReplacesOlderConnection(t *testing.T) {
	ctx := context.Background()
	table := NewTable(nil)

	require.Nil(t, table.Register(ctx, "u1", "old"))
	require.Nil(t, table.Register(ctx, "u1", "new"))
	assert.Equal(t, 1, table.OnlineCount())

	// the stale connection closing must not take the user offline
	_, ok := table.Unregister(ctx, "old")
	assert.False(t, ok)
	assert.True(t, table.IsOnline("u1"))

	assert.Equal(t, "u1", table.handles["new"])
	assert.NotContains(t, table.handles, "old")

	_, ok = table.Unregister(ctx, "new")
	assert.True(t, ok)
	assert.False(t, table.IsOnline("u1"))
}

func TestTable_ConcurrentChurn(t *testing.T) {
	ctx := context.Background()
	users := user_repo.NewMemoryRepo()
	table := NewTable(users)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i%4)
			handle := fmt.Sprintf("conn-%d", i)
			_ = table.Register(ctx, userID, handle)
			_ = table.IsOnline(userID)
			table.Unregister(ctx, handle)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, table.OnlineCount())
	for i := 0; i < 4; i++ {
		userID := fmt.Sprintf("u%d", i)
		stored, err := users.FindByID(ctx, userID)
		require.Nil(t, err)
		assert.Equal(t, table.IsOnline(userID), stored.IsOnline)
	}
}

func TestSetStatus_LiveConnectionOwnsStatus(t *testing.T) {
	ctx := context.Background()
	users := user_repo.NewMemoryRepo()
	table := NewTable(users)
	fixed := time.Date(2024, 3, 3, 9, 0, 0, 987_654_321, time.UTC)
	table.now = func() time.Time { return fixed }

	err := table.SetStatus(ctx, "u1", true)
	assert.True(t, err.Has(app_error.KindConflict), "online comes from a connection")

	require.Nil(t, table.Register(ctx, "u1", "conn-1"))
	require.Nil(t, table.SetStatus(ctx, "u1", true))

	err = table.SetStatus(ctx, "u1", false)
	assert.True(t, err.Has(app_error.KindConflict))
	assert.True(t, table.IsOnline("u1"))
	stored, findErr := users.FindByID(ctx, "u1")
	require.Nil(t, findErr)
	assert.True(t, stored.IsOnline, "rejected report never reaches the store")

	_, ok := table.Unregister(ctx, "conn-1")
	require.True(t, ok)

	fixed = fixed.Add(time.Minute)
	require.Nil(t, table.SetStatus(ctx, "u1", false))
	live := table.LastSeenOf("u1")
	require.NotNil(t, live)
	assert.True(t, fixed.Truncate(time.Millisecond).Equal(*live))

	status, getErr := user_service.NewUserService(users, table).GetStatus(ctx, "u1")
	require.Nil(t, getErr)
	assert.False(t, status.IsOnline)
	require.NotNil(t, status.LastSeen)
	assert.True(t, live.Equal(*status.LastSeen))
}
