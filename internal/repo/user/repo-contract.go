package user_repo

import (
	"context"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

type UserRepoContract interface {
	SaveUser(ctx context.Context, user *entity.User) *app_error.AppError
	FindByID(ctx context.Context, userID string) (*entity.User, *app_error.AppError)
	FindByIDs(ctx context.Context, userIDs []string) (map[string]*entity.User, *app_error.AppError)
	// UpdatePresence mirrors the live presence table. lastSeen is left
	// untouched when nil.
	UpdatePresence(ctx context.Context, userID string, online bool, lastSeen *time.Time) *app_error.AppError
}
