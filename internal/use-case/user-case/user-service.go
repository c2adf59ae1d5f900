package user_service

import (
	"context"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	user_repo "github.com/quocdatk18/appchat-sub000/internal/repo/user"
)

// StatusOwner decides presence while connections exist. The presence table
// implements it.
type StatusOwner interface {
	SetStatus(ctx context.Context, userID string, online bool) *app_error.AppError
}

type UserService struct {
	UserRepo user_repo.UserRepoContract
	Presence StatusOwner
	Now      func() time.Time
}

// NewUserService writes status changes through presence when it is set, and
// straight to the store otherwise.
func NewUserService(users user_repo.UserRepoContract, presence StatusOwner) UserServiceContract {
	return &UserService{
		UserRepo: users,
		Presence: presence,
		Now:      time.Now,
	}
}

func (u *UserService) GetStatus(ctx context.Context, userID string) (*entity.UserStatus, *app_error.AppError) {
	if userID == "" {
		return nil, app_error.Validation("user id is required", "user-id")
	}
	user, err := u.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &entity.UserStatus{
		UserID:   user.ID,
		IsOnline: user.IsOnline,
		LastSeen: user.LastSeen,
	}, nil
}

func (u *UserService) UpdateStatus(ctx context.Context, userID string, online bool) (*entity.UserStatus, *app_error.AppError) {
	if u.Presence != nil {
		if err := u.Presence.SetStatus(ctx, userID, online); err != nil {
			return nil, err
		}
		return u.GetStatus(ctx, userID)
	}

	var lastSeen *time.Time
	if !online {
		now := u.Now().UTC().Truncate(time.Millisecond)
		lastSeen = &now
	}
	if err := u.UserRepo.UpdatePresence(ctx, userID, online, lastSeen); err != nil {
		return nil, err
	}
	return u.GetStatus(ctx, userID)
}

func (u *UserService) SyncProfile(ctx context.Context, profile entity.PublicProfile) *app_error.AppError {
	if profile.ID == "" {
		return app_error.Validation("user id is required", "user-id")
	}

	existing, err := u.UserRepo.FindByID(ctx, profile.ID)
	if err != nil && !err.Has(app_error.KindNotFound) {
		return err
	}

	if existing == nil {
		return u.UserRepo.SaveUser(ctx, &entity.User{ID: profile.ID, Username: profile.Username, Avatar: profile.Avatar})
	}

	changed := false
	if profile.Username != "" && profile.Username != existing.Username {
		existing.Username = profile.Username
		changed = true
	}
	if profile.Avatar != "" && profile.Avatar != existing.Avatar {
		existing.Avatar = profile.Avatar
		changed = true
	}
	if !changed {
		return nil
	}
	return u.UserRepo.SaveUser(ctx, existing)
}
