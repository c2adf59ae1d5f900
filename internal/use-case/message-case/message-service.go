package message_service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	message_repo "github.com/quocdatk18/appchat-sub000/internal/repo/message"
	user_repo "github.com/quocdatk18/appchat-sub000/internal/repo/user"
	conversation_service "github.com/quocdatk18/appchat-sub000/internal/use-case/conversation-case"
)

const DefaultRecallWindow = 5 * time.Minute

type Options struct {
	RecallWindow time.Duration
	Now          func() time.Time
}

type MessageService struct {
	MessageRepo   message_repo.MessageRepoContract
	UserRepo      user_repo.UserRepoContract
	Conversations conversation_service.ConversationServiceContract
	opts          Options
}

func NewMessageService(messages message_repo.MessageRepoContract, users user_repo.UserRepoContract, conversations conversation_service.ConversationServiceContract, opts Options) MessageServiceContract {
	if opts.RecallWindow <= 0 {
		opts.RecallWindow = DefaultRecallWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MessageService{
		MessageRepo:   messages,
		UserRepo:      users,
		Conversations: conversations,
		opts:          opts,
	}
}

func (s *MessageService) now() time.Time {
	return s.opts.Now().UTC().Truncate(time.Millisecond)
}

func (s *MessageService) Create(ctx context.Context, senderID, conversationID string, payload entity.MessagePayload) (*entity.MessageView, *app_error.AppError) {
	trimmed := strings.TrimSpace(payload.Content)
	mediaURL := strings.TrimSpace(payload.MediaURL)
	if trimmed == "" && mediaURL == "" {
		return nil, app_error.Validation("message must have content or an attachment", "content")
	}

	msgType := payload.Type
	if msgType == "" {
		msgType = entity.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, app_error.Validation(fmt.Sprintf("unsupported message type %q", msgType), "type")
	}

	if _, err := s.Conversations.RequireMember(ctx, senderID, conversationID); err != nil {
		return nil, err
	}
	seq, err := s.Conversations.NextMessageSeq(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &entity.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Seq:            seq,
		SenderID:       senderID,
		Content:        payload.Content,
		Type:           msgType,
		MediaURL:       mediaURL,
		Mimetype:       payload.Mimetype,
		OriginalName:   payload.OriginalName,
		Status:         entity.MessageActive,
		DeletedBy:      []string{},
		SeenBy:         []string{},
		CreatedAt:      s.now(),
	}
	if err := s.MessageRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	s.touchConversation(ctx, msg)

	return &entity.MessageView{Message: msg, Sender: s.profileOf(ctx, senderID)}, nil
}

// touchConversation re-lists the conversation for the sender and refreshes the
// last-message cache and unread counters.
// The message is already durable, so failures here are logged and dropped.
func (s *MessageService) touchConversation(ctx context.Context, msg *entity.Message) {
	if err := s.Conversations.RestoreForUser(ctx, msg.SenderID, msg.ConversationID); err != nil {
		log.Error().Err(err).Str("conversationID", msg.ConversationID).Str("userID", msg.SenderID).Msg("failed to restore conversation for sender")
	}

	preview := strings.TrimSpace(msg.Content)
	if preview == "" {
		if msg.MediaURL == "" {
			return
		}
		preview = fmt.Sprintf("[%s]", msg.Type)
	}

	if err := s.Conversations.UpdateLastMessage(ctx, msg.ConversationID, preview, msg.Type, msg.SenderID); err != nil {
		log.Error().Err(err).Str("conversationID", msg.ConversationID).Str("messageID", msg.ID).Msg("failed to update last message")
	}
	if err := s.Conversations.IncrementUnreadCount(ctx, msg.ConversationID, msg.SenderID); err != nil {
		log.Error().Err(err).Str("conversationID", msg.ConversationID).Str("messageID", msg.ID).Msg("failed to increment unread count")
	}
}

func (s *MessageService) profileOf(ctx context.Context, userID string) entity.PublicProfile {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return entity.PublicProfile{ID: userID}
	}
	return user.Profile()
}

func (s *MessageService) ListByConversation(ctx context.Context, conversationID, userID string) ([]*entity.MessageView, *app_error.AppError) {
	if _, err := s.Conversations.RequireMember(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	overlay, err := s.Conversations.Overlay(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := s.MessageRepo.ListByConversation(ctx, conversationID, userID, overlay.HiddenThroughSeq)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.SenderID)
	}
	users, err := s.UserRepo.FindByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*entity.MessageView, 0, len(messages))
	for _, m := range messages {
		sender := entity.PublicProfile{ID: m.SenderID}
		if u, ok := users[m.SenderID]; ok {
			sender = u.Profile()
		}
		views = append(views, &entity.MessageView{Message: m, Sender: sender})
	}
	return views, nil
}

func (s *MessageService) Recall(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError) {
	msg, err := s.MessageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, app_error.Permission("only the sender can recall a message", "message-id")
	}
	if msg.Status.Terminal() {
		return nil, terminalError(msg.Status)
	}

	now := s.now()
	if now.Sub(msg.CreatedAt) > s.opts.RecallWindow {
		return nil, app_error.TimeWindow(fmt.Sprintf("messages can only be recalled within %s", s.opts.RecallWindow), "message-id")
	}

	recalled, err := s.MessageRepo.Transition(ctx, messageID, entity.MessageRecalled, userID, now)
	if err != nil {
		if err.Has(app_error.KindConflict) {
			return nil, terminalError(entity.MessageRecalled)
		}
		return nil, err
	}

	log.Info().Str("messageID", messageID).Str("userID", userID).Msg("message recalled")
	return recalled, nil
}

func (s *MessageService) DeleteForUser(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError) {
	msg, err := s.MessageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Conversations.RequireMember(ctx, userID, msg.ConversationID); err != nil {
		return nil, err
	}
	return s.MessageRepo.AddDeletedBy(ctx, messageID, userID)
}

func (s *MessageService) DeleteForAll(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError) {
	msg, err := s.MessageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := s.Conversations.RequireMember(ctx, userID, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, app_error.Permission("delete for everyone is only available in group conversations", "conversation-id")
	}
	if !conversation_service.IsConversationAdmin(conv, userID) {
		return nil, app_error.Permission("only the group admin can delete messages for everyone", "message-id")
	}
	if msg.Status.Terminal() {
		return nil, terminalError(msg.Status)
	}

	deleted, err := s.MessageRepo.Transition(ctx, messageID, entity.MessageDeletedForAll, userID, s.now())
	if err != nil {
		if err.Has(app_error.KindConflict) {
			return nil, terminalError(entity.MessageDeletedForAll)
		}
		return nil, err
	}

	log.Info().Str("messageID", messageID).Str("userID", userID).Msg("message deleted for everyone")
	return deleted, nil
}

func (s *MessageService) MarkSeen(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError) {
	msg, err := s.MessageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Conversations.RequireMember(ctx, userID, msg.ConversationID); err != nil {
		return nil, err
	}
	return s.MessageRepo.AddSeenBy(ctx, messageID, userID)
}

func terminalError(status entity.MessageStatus) *app_error.AppError {
	return app_error.AlreadyInTerminalState(fmt.Sprintf("message is already %s", strings.ReplaceAll(string(status), "_", " ")), "message-id")
}
