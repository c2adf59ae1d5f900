package conversation_service

import (
	"context"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

type ConversationServiceContract interface {
	ResolveOrCreateDirect(ctx context.Context, userA, userB string) (*entity.Conversation, *app_error.AppError)
	CreateGroup(ctx context.Context, creatorID string, memberIDs []string, name string) (*entity.Conversation, *app_error.AppError)
	ListForUser(ctx context.Context, userID string) ([]entity.ConversationSummary, *app_error.AppError)
	Search(ctx context.Context, userID, query string) ([]entity.ConversationSummary, *app_error.AppError)
	Get(ctx context.Context, userID, conversationID string) (*entity.ConversationSummary, *app_error.AppError)

	// NextMessageSeq orders messages within a conversation independent of clock
	// resolution.
	NextMessageSeq(ctx context.Context, conversationID string) (int64, *app_error.AppError)
	UpdateLastMessage(ctx context.Context, conversationID, content string, msgType entity.MessageType, senderID string) *app_error.AppError
	IncrementUnreadCount(ctx context.Context, conversationID, exceptUserID string) *app_error.AppError
	MarkRead(ctx context.Context, userID, conversationID string) *app_error.AppError
	HideForUser(ctx context.Context, userID, conversationID string) *app_error.AppError
	// RestoreForUser brings a hidden conversation back into userID's list.
	// History before the hide point stays filtered.
	RestoreForUser(ctx context.Context, userID, conversationID string) *app_error.AppError
	SetSettings(ctx context.Context, userID, conversationID string, pinned, muted *bool) (*entity.UserConversation, *app_error.AppError)

	AddMembers(ctx context.Context, requesterID, conversationID string, memberIDs []string) (*entity.Conversation, *app_error.AppError)
	RemoveMembers(ctx context.Context, requesterID, conversationID string, memberIDs []string) (*entity.Conversation, *app_error.AppError)

	// RequireMember loads the conversation and fails with a permission error
	// unless userID belongs to it.
	RequireMember(ctx context.Context, userID, conversationID string) (*entity.Conversation, *app_error.AppError)
	Overlay(ctx context.Context, userID, conversationID string) (*entity.UserConversation, *app_error.AppError)
}
