package user_handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
	user_service "github.com/quocdatk18/appchat-sub000/internal/use-case/user-case"
)

type UserHandler struct {
	Validate *validator.Validate
	Service  user_service.UserServiceContract
}

func NewUserHandler(service user_service.UserServiceContract) *UserHandler {
	return &UserHandler{
		Validate: validator.New(),
		Service:  service,
	}
}

// GetStatus reads the persisted presence mirror, not the live table.
func (h *UserHandler) GetStatus(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	if _, appErr := handlers.CurrentUser(r); appErr != nil {
		return appErr
	}

	status, err := h.Service.GetStatus(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "user status fetch successfully", chat_dto.NewUserStatusResponse(status))
	return nil
}

func (h *UserHandler) UpdateMyStatus(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	var req chat_dto.UpdateStatusRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.Validate.Struct(req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid fields: %v", err), "validation")
	}

	status, err := h.Service.UpdateStatus(r.Context(), userID, *req.IsOnline)
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "user status updated", chat_dto.NewUserStatusResponse(status))
	return nil
}
