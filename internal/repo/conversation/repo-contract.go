package conversation_repo

import (
	"context"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

type ConversationRepoContract interface {
	// FindDirect returns a NotFound error when no direct conversation owns the pair key.
	FindDirect(ctx context.Context, pairKey string) (*entity.Conversation, *app_error.AppError)
	// Insert returns a Conflict error when the pair key is already taken.
	Insert(ctx context.Context, conv *entity.Conversation) *app_error.AppError
	FindByID(ctx context.Context, conversationID string) (*entity.Conversation, *app_error.AppError)
	FindByMember(ctx context.Context, userID string) ([]*entity.Conversation, *app_error.AppError)
	// NextSeq reserves the next message sequence number of the conversation.
	NextSeq(ctx context.Context, conversationID string) (int64, *app_error.AppError)
	UpdateLastMessage(ctx context.Context, conversationID, content string, msgType entity.MessageType, senderID string, at time.Time) *app_error.AppError
	AddMembers(ctx context.Context, conversationID string, memberIDs []string, at time.Time) (*entity.Conversation, *app_error.AppError)
	RemoveMembers(ctx context.Context, conversationID string, memberIDs []string, at time.Time) (*entity.Conversation, *app_error.AppError)

	// FindOverlay never fails for a missing overlay; it returns a zero overlay instead.
	FindOverlay(ctx context.Context, userID, conversationID string) (*entity.UserConversation, *app_error.AppError)
	FindOverlays(ctx context.Context, userID string) (map[string]*entity.UserConversation, *app_error.AppError)
	// HideForUser records the hide time and the current Seq as the hide point.
	HideForUser(ctx context.Context, userID, conversationID string, at time.Time) *app_error.AppError
	// RestoreForUser clears isDeleted and keeps lastDeletedAt.
	RestoreForUser(ctx context.Context, userID, conversationID string) *app_error.AppError
	IncrementUnread(ctx context.Context, conversationID string, userIDs []string) *app_error.AppError
	MarkRead(ctx context.Context, userID, conversationID string, at time.Time) *app_error.AppError
	SetOverlayFlags(ctx context.Context, userID, conversationID string, pinned, muted *bool) (*entity.UserConversation, *app_error.AppError)
}
