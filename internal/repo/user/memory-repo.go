package user_repo

import (
	"context"
	"sync"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]*entity.User)}
}

func (r *MemoryRepo) SaveUser(_ context.Context, user *entity.User) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryRepo) FindByID(_ context.Context, userID string) (*entity.User, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, app_error.NotFound("cannot find user", "user-id")
	}
	return user.Clone(), nil
}

func (r *MemoryRepo) FindByIDs(_ context.Context, userIDs []string) (map[string]*entity.User, *app_error.AppError) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*entity.User, len(userIDs))
	for _, id := range userIDs {
		if u, ok := r.users[id]; ok {
			out[id] = u.Clone()
		}
	}
	return out, nil
}

func (r *MemoryRepo) UpdatePresence(_ context.Context, userID string, online bool, lastSeen *time.Time) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		user = &entity.User{ID: userID}
		r.users[userID] = user
	}
	user.IsOnline = online
	if lastSeen != nil {
		t := *lastSeen
		user.LastSeen = &t
	}
	return nil
}
