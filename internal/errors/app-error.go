package app_error

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindPermission    Kind = "permission"
	KindNotFound      Kind = "not_found"
	KindTimeWindow    Kind = "time_window"
	KindTerminalState Kind = "terminal_state"
	KindTransient     Kind = "transient_store"
	KindConflict      Kind = "conflict"
	KindUnauthorized  Kind = "unauthorized"
	KindRateLimited   Kind = "rate_limited"
	KindInternal      Kind = "internal"
)

type AppError struct {
	Code    int    `json:"-"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e AppError) Error() string {
	return e.Message
}

func (e AppError) JSON(w http.ResponseWriter) error {
	return json.NewEncoder(w).Encode(e)
}

func NewAppError(code int, msg, field string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kindForCode(code),
		Message: msg,
		Field:   field,
	}
}

func kindForCode(code int) Kind {
	switch code {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindPermission
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusServiceUnavailable:
		return KindTransient
	default:
		return KindInternal
	}
}

func Validation(msg, field string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Kind: KindValidation, Message: msg, Field: field}
}

func Permission(msg, field string) *AppError {
	return &AppError{Code: http.StatusForbidden, Kind: KindPermission, Message: msg, Field: field}
}

func NotFound(msg, field string) *AppError {
	return &AppError{Code: http.StatusNotFound, Kind: KindNotFound, Message: msg, Field: field}
}

func TimeWindow(msg, field string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Kind: KindTimeWindow, Message: msg, Field: field}
}

// AlreadyInTerminalState is returned for a second recall or delete-for-all.
func AlreadyInTerminalState(msg, field string) *AppError {
	return &AppError{Code: http.StatusConflict, Kind: KindTerminalState, Message: msg, Field: field}
}

func Conflict(msg, field string) *AppError {
	return &AppError{Code: http.StatusConflict, Kind: KindConflict, Message: msg, Field: field}
}

func Unauthorized(msg, field string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthorized, Message: msg, Field: field}
}

func RateLimited(msg, field string) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Kind: KindRateLimited, Message: msg, Field: field}
}

// TransientStore wraps a persistence failure. The cause is kept in the message
// for logs only; callers see the same structure as every other failure.
func TransientStore(op string, err error) *AppError {
	return &AppError{
		Code:    http.StatusServiceUnavailable,
		Kind:    KindTransient,
		Message: fmt.Sprintf("failed to %s: %v", op, err),
		Field:   "store",
	}
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr != nil && appErr.Kind == kind
	}
	var value AppError
	if errors.As(err, &value) {
		return value.Kind == kind
	}
	return false
}

// Has is the nil-safe variant of IsKind for *AppError returns.
func (e *AppError) Has(kind Kind) bool {
	return e != nil && e.Kind == kind
}
