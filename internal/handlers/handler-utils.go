package handlers

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/quocdatk18/appchat-sub000/internal/dtos"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/middleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type HandlerFunc func(w http.ResponseWriter, r *http.Request) *app_error.AppError

func WrapHandler(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		requestID := RequestID(r)
		event := log.Warn()
		if err.Code >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.Str("kind", string(err.Kind)).Str("request_id", requestID).Str("path", r.URL.Path).Msg(err.Message)

		writeJSON(w, err.Code, dtos.Response[any]{
			Message: "Error occur",
			Errors: &dtos.ErrorResponse{
				Code:    err.Code,
				Kind:    string(err.Kind),
				Message: err.Message,
				Field:   err.Field,
			},
			RequestID: requestID,
		})
	}
}

func CreateResponse[T any](message string, data T, requestId string) dtos.Response[T] {
	return dtos.Response[T]{
		Message:   message,
		Data:      data,
		RequestID: requestId,
	}
}

func RequestID(r *http.Request) string {
	reqID, ok := r.Context().Value(middleware.RequestIdKey).(string)
	if !ok {
		return "unknown"
	}
	return reqID
}

// Respond writes a success envelope.
func Respond[T any](w http.ResponseWriter, r *http.Request, status int, message string, data T) {
	writeJSON(w, status, CreateResponse(message, data, RequestID(r)))
}

// CurrentUser returns the authenticated user id or an unauthorized error.
func CurrentUser(r *http.Request) (string, *app_error.AppError) {
	userID := middleware.UserIDFrom(r.Context())
	if userID == "" {
		return "", app_error.NewAppError(http.StatusUnauthorized, "user id is not found in context", "context")
	}
	return userID, nil
}

func DecodeJSON(r *http.Request, dst any) *app_error.AppError {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, "Invalid JSON", "body")
	}
	return nil
}
