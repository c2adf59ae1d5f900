package conversation_handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
	conversation_service "github.com/quocdatk18/appchat-sub000/internal/use-case/conversation-case"
	message_service "github.com/quocdatk18/appchat-sub000/internal/use-case/message-case"
)

type ConversationHandler struct {
	Validate      *validator.Validate
	Conversations conversation_service.ConversationServiceContract
	Messages      message_service.MessageServiceContract
}

func NewConversationHandler(conversations conversation_service.ConversationServiceContract, messages message_service.MessageServiceContract) *ConversationHandler {
	return &ConversationHandler{
		Validate:      validator.New(),
		Conversations: conversations,
		Messages:      messages,
	}
}

func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	var req chat_dto.CreateConversationRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.Validate.Struct(req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid fields: %v", err), "validation")
	}

	var conv *entity.Conversation
	if req.IsGroup {
		created, err := h.Conversations.CreateGroup(r.Context(), userID, req.MemberIDs, req.Name)
		if err != nil {
			return err
		}
		conv = created
	} else {
		if len(req.MemberIDs) != 1 {
			return app_error.Validation("a direct conversation takes exactly one peer", "memberIds")
		}
		resolved, err := h.Conversations.ResolveOrCreateDirect(r.Context(), userID, req.MemberIDs[0])
		if err != nil {
			return err
		}
		conv = resolved
	}

	handlers.Respond(w, r, http.StatusCreated, "conversation ready", chat_dto.NewConversationResponse(conv))
	return nil
}

func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	summaries, err := h.Conversations.ListForUser(r.Context(), userID)
	if err != nil {
		return err
	}

	resp := make([]*chat_dto.ConversationResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, chat_dto.NewConversationSummaryResponse(s))
	}
	handlers.Respond(w, r, http.StatusOK, "conversations fetch successfully", resp)
	return nil
}

func (h *ConversationHandler) SearchConversations(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	req := chat_dto.SearchConversationsRequest{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if err := h.Validate.Struct(req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid fields: %v", err), "q")
	}

	summaries, err := h.Conversations.Search(r.Context(), userID, req.Query)
	if err != nil {
		return err
	}

	resp := make([]*chat_dto.ConversationResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, chat_dto.NewConversationSummaryResponse(s))
	}
	handlers.Respond(w, r, http.StatusOK, "conversations search successfully", resp)
	return nil
}

func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	summary, err := h.Conversations.Get(r.Context(), userID, chi.URLParam(r, "conversationId"))
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "conversation fetch successfully", chat_dto.NewConversationSummaryResponse(*summary))
	return nil
}

// HideConversation removes the conversation from the caller's list only.
func (h *ConversationHandler) HideConversation(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	conversationID := chi.URLParam(r, "conversationId")
	if err := h.Conversations.HideForUser(r.Context(), userID, conversationID); err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "conversation hidden", map[string]string{"conversationId": conversationID})
	return nil
}

func (h *ConversationHandler) AddMembers(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	return h.changeMembers(w, r, h.Conversations.AddMembers, "members added")
}

func (h *ConversationHandler) RemoveMembers(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	return h.changeMembers(w, r, h.Conversations.RemoveMembers, "members removed")
}

type membersOp func(ctx context.Context, requesterID, conversationID string, memberIDs []string) (*entity.Conversation, *app_error.AppError)

func (h *ConversationHandler) changeMembers(w http.ResponseWriter, r *http.Request, op membersOp, message string) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	var req chat_dto.MembersRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.Validate.Struct(req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid fields: %v", err), "validation")
	}

	conv, err := op(r.Context(), userID, chi.URLParam(r, "conversationId"), req.MemberIDs)
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, message, chat_dto.NewConversationResponse(conv))
	return nil
}

func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	conversationID := chi.URLParam(r, "conversationId")
	if err := h.Conversations.MarkRead(r.Context(), userID, conversationID); err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "conversation marked as read", map[string]string{"conversationId": conversationID})
	return nil
}

func (h *ConversationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	var req chat_dto.ConversationSettingsRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		return err
	}
	if req.IsPinned == nil && req.IsMuted == nil {
		return app_error.Validation("isPinned or isMuted is required", "body")
	}

	conversationID := chi.URLParam(r, "conversationId")
	overlay, err := h.Conversations.SetSettings(r.Context(), userID, conversationID, req.IsPinned, req.IsMuted)
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "settings updated", chat_dto.SettingsResponse{
		ConversationID: conversationID,
		IsPinned:       overlay.IsPinned,
		IsMuted:        overlay.IsMuted,
	})
	return nil
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	views, err := h.Messages.ListByConversation(r.Context(), chi.URLParam(r, "conversationId"), userID)
	if err != nil {
		return err
	}

	resp := make([]*chat_dto.MessageResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, chat_dto.NewMessageViewResponse(v))
	}
	handlers.Respond(w, r, http.StatusOK, "messages fetch successfully", resp)
	return nil
}
