package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/utils"
)

// Store receives every presence transition so REST reads agree with the table.
type Store interface {
	UpdatePresence(ctx context.Context, userID string, online bool, lastSeen *time.Time) *app_error.AppError
}

type entry struct {
	handle   string
	online   bool
	lastSeen *time.Time
}

// Table maps each user to their single live connection handle. Reads take the
// shared lock only; writes for one user are serialized with the store mirror
// so the persisted record never trails the table by more than one transition.
type Table struct {
	mu       sync.RWMutex
	users    map[string]*entry
	handles  map[string]string
	userLock *utils.KeyLock
	store    Store
	now      func() time.Time
}

func NewTable(store Store) *Table {
	return &Table{
		users:    make(map[string]*entry),
		handles:  make(map[string]string),
		userLock: utils.NewKeyLock(),
		store:    store,
		now:      time.Now,
	}
}

// Register makes handle the user's live connection, replacing any older one.
func (t *Table) Register(ctx context.Context, userID, handle string) *app_error.AppError {
	if userID == "" || handle == "" {
		return app_error.Validation("user id and connection handle are required", "register")
	}

	unlock := t.userLock.Lock(userID)
	defer unlock()

	t.mu.Lock()
	e, ok := t.users[userID]
	if !ok {
		e = &entry{}
		t.users[userID] = e
	}
	if e.handle != "" && e.handle != handle {
		delete(t.handles, e.handle)
		log.Debug().Str("userID", userID).Str("replaced", e.handle).Msg("presence: connection replaced")
	}
	e.handle = handle
	e.online = true
	t.handles[handle] = userID
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	if err := t.store.UpdatePresence(ctx, userID, true, nil); err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("presence: failed to mirror online state")
		return err
	}
	return nil
}

// Unregister takes the user owning handle offline. Unknown or replaced handles
// are ignored, so a duplicate disconnect signal is a no-op. It reports the
// user that went offline.
func (t *Table) Unregister(ctx context.Context, handle string) (string, bool) {
	t.mu.RLock()
	userID, ok := t.handles[handle]
	t.mu.RUnlock()
	if !ok {
		return "", false
	}

	unlock := t.userLock.Lock(userID)
	defer unlock()

	t.mu.Lock()
	if owner, still := t.handles[handle]; !still || owner != userID {
		t.mu.Unlock()
		return "", false
	}
	delete(t.handles, handle)

	now := t.now().UTC().Truncate(time.Millisecond)
	e := t.users[userID]
	e.handle = ""
	e.online = false
	e.lastSeen = &now
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.UpdatePresence(ctx, userID, false, &now); err != nil {
			log.Error().Err(err).Str("userID", userID).Msg("presence: failed to mirror offline state")
		}
	}
	return userID, true
}

// SetStatus applies a status reported outside a connection. A live
// connection owns the user's status, so only agreeing reports are accepted:
// online while connected is a no-op and offline without a connection stamps
// lastSeen in the table and the store.
func (t *Table) SetStatus(ctx context.Context, userID string, online bool) *app_error.AppError {
	if userID == "" {
		return app_error.Validation("user id is required", "user-id")
	}

	unlock := t.userLock.Lock(userID)
	defer unlock()

	t.mu.Lock()
	e, ok := t.users[userID]
	live := ok && e.online
	switch {
	case live && online:
		t.mu.Unlock()
		return nil
	case live:
		t.mu.Unlock()
		return app_error.Conflict("status is owned by the live connection", "isOnline")
	case online:
		t.mu.Unlock()
		return app_error.Conflict("open a connection to go online", "isOnline")
	}

	if !ok {
		e = &entry{}
		t.users[userID] = e
	}
	now := t.now().UTC().Truncate(time.Millisecond)
	e.lastSeen = &now
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	return t.store.UpdatePresence(ctx, userID, false, &now)
}

func (t *Table) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.users[userID]
	return ok && e.online
}

// LastSeenOf is nil until the user has gone offline at least once.
func (t *Table) LastSeenOf(userID string) *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.users[userID]
	if !ok || e.lastSeen == nil {
		return nil
	}
	ts := *e.lastSeen
	return &ts
}

func (t *Table) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}
