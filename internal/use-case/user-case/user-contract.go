package user_service

import (
	"context"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

type UserServiceContract interface {
	GetStatus(ctx context.Context, userID string) (*entity.UserStatus, *app_error.AppError)
	UpdateStatus(ctx context.Context, userID string, online bool) (*entity.UserStatus, *app_error.AppError)
	// SyncProfile records the public profile the identity provider vouched for,
	// keeping any presence already stored.
	SyncProfile(ctx context.Context, profile entity.PublicProfile) *app_error.AppError
}
