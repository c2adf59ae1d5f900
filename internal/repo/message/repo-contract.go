package message_repo

import (
	"context"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

type MessageRepoContract interface {
	Insert(ctx context.Context, msg *entity.Message) *app_error.AppError
	FindByID(ctx context.Context, messageID string) (*entity.Message, *app_error.AppError)
	// ListByConversation returns messages ascending by createdAt, skipping any the
	// viewer hid and any with a Seq at or below afterSeq.
	ListByConversation(ctx context.Context, conversationID, viewerID string, afterSeq int64) ([]*entity.Message, *app_error.AppError)
	// Transition moves an Active message to a terminal status. It returns a
	// Conflict error when the message is no longer Active.
	Transition(ctx context.Context, messageID string, to entity.MessageStatus, actorID string, at time.Time) (*entity.Message, *app_error.AppError)
	AddDeletedBy(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError)
	AddSeenBy(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError)
}
