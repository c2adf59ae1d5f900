package message_service

import (
	"context"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

type MessageServiceContract interface {
	Create(ctx context.Context, senderID, conversationID string, payload entity.MessagePayload) (*entity.MessageView, *app_error.AppError)
	ListByConversation(ctx context.Context, conversationID, userID string) ([]*entity.MessageView, *app_error.AppError)
	Recall(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError)
	DeleteForUser(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError)
	DeleteForAll(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError)
	MarkSeen(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError)
}
