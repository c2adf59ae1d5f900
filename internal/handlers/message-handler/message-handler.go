package message_handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/events"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
	"github.com/quocdatk18/appchat-sub000/internal/queue"
	conversation_service "github.com/quocdatk18/appchat-sub000/internal/use-case/conversation-case"
	message_service "github.com/quocdatk18/appchat-sub000/internal/use-case/message-case"
	"github.com/quocdatk18/appchat-sub000/internal/websocket"
)

// MessageHandler exposes the lifecycle mutations over REST. Connected
// clients learn about them through queued broadcast jobs.
type MessageHandler struct {
	Producer      queue.Producer
	Events        events.Publisher
	Conversations conversation_service.ConversationServiceContract
	Messages      message_service.MessageServiceContract
}

func NewMessageHandler(producer queue.Producer, publisher events.Publisher, conversations conversation_service.ConversationServiceContract, messages message_service.MessageServiceContract) *MessageHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &MessageHandler{
		Producer:      producer,
		Events:        publisher,
		Conversations: conversations,
		Messages:      messages,
	}
}

func (h *MessageHandler) RecallMessage(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	msg, err := h.Messages.Recall(r.Context(), chi.URLParam(r, "messageId"), userID)
	if err != nil {
		return err
	}

	data := chat_dto.MessageRecalledData{MessageID: msg.ID, ConversationID: msg.ConversationID}
	if msg.RecallAt != nil {
		data.RecallAt = msg.RecallAt.UnixMilli()
	}
	h.broadcastToMembers(r, userID, msg, chat_dto.EventMessageRecalled, data)
	h.publish(r, events.MessageRecalled, msg, msg.RecallAt)

	handlers.Respond(w, r, http.StatusOK, "message recalled", chat_dto.NewMessageResponse(msg, nil))
	return nil
}

func (h *MessageHandler) DeleteForMe(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	msg, err := h.Messages.DeleteForUser(r.Context(), chi.URLParam(r, "messageId"), userID)
	if err != nil {
		return err
	}

	data := chat_dto.MessageDeletedData{MessageID: msg.ID, ConversationID: msg.ConversationID, UserID: userID}
	h.enqueueBroadcast(r.Context(), chat_dto.EventMessageDeleted, data, []string{websocket.PersonalRoom(userID)})

	handlers.Respond(w, r, http.StatusOK, "message deleted for you", data)
	return nil
}

func (h *MessageHandler) DeleteForAll(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	msg, err := h.Messages.DeleteForAll(r.Context(), chi.URLParam(r, "messageId"), userID)
	if err != nil {
		return err
	}

	data := chat_dto.MessageDeletedForAllData{MessageID: msg.ID, ConversationID: msg.ConversationID, DeletedForAllBy: msg.DeletedForAllBy}
	if msg.DeletedForAllAt != nil {
		data.DeletedForAllAt = msg.DeletedForAllAt.UnixMilli()
	}
	h.broadcastToMembers(r, userID, msg, chat_dto.EventMessageDeletedForAll, data)
	h.publish(r, events.MessageDeletedForAll, msg, msg.DeletedForAllAt)

	handlers.Respond(w, r, http.StatusOK, "message deleted for everyone", chat_dto.NewMessageResponse(msg, nil))
	return nil
}

func (h *MessageHandler) MarkSeen(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	msg, err := h.Messages.MarkSeen(r.Context(), chi.URLParam(r, "messageId"), userID)
	if err != nil {
		return err
	}

	data := chat_dto.MessageSeenData{MessageID: msg.ID, ConversationID: msg.ConversationID, UserID: userID}
	h.enqueueBroadcast(r.Context(), chat_dto.EventMessageSeen, data, []string{websocket.ConversationRoom(msg.ConversationID)})

	handlers.Respond(w, r, http.StatusOK, "message marked as seen", data)
	return nil
}

func (h *MessageHandler) broadcastToMembers(r *http.Request, userID string, msg *entity.Message, event string, data any) {
	rooms := []string{websocket.ConversationRoom(msg.ConversationID)}
	if conv, err := h.Conversations.RequireMember(r.Context(), userID, msg.ConversationID); err == nil {
		rooms = websocket.Audience(conv)
	}
	h.enqueueBroadcast(r.Context(), event, data, rooms)
}

func (h *MessageHandler) publish(r *http.Request, eventType string, msg *entity.Message, at *time.Time) {
	occurredAt := time.Now().UTC()
	if at != nil {
		occurredAt = *at
	}
	h.publishEvent(r.Context(), events.MessageEvent{
		Type:           eventType,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		OccurredAt:     occurredAt,
	})
}
