package core

import (
	"fmt"
	"net/http"
)

// Error codes
const (
	ErrInvalidRequest      = "INVALID_REQUEST"
	ErrInvalidContent      = "INVALID_CONTENT_TYPE"
	ErrInvalidFEN          = "INVALID_FEN"
	ErrNotFound            = "NOT_FOUND"
	ErrGameNotFound        = "GAME_NOT_FOUND"
	ErrDuplicatePly        = "DUPLICATE_PLY"
	ErrConflict            = "CONFLICT"
	ErrInvalidSource       = "INVALID_SOURCE"
	ErrUnresolvableID      = "UNRESOLVABLE_ID"
	ErrUpstreamUnreachable = "UPSTREAM_UNREACHABLE"
	ErrUpstreamNotFound    = "UPSTREAM_NOT_FOUND"
	ErrUpstreamFailure     = "UPSTREAM_FAILURE"
	ErrUpstreamBadPayload  = "UPSTREAM_BAD_PAYLOAD"
	ErrPersistFailure      = "PERSIST_FAILURE"
	ErrUnauthorized        = "UNAUTHORIZED"
	ErrRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrAdminNotConfigured  = "ADMIN_NOT_CONFIGURED"
	ErrInternalError       = "INTERNAL_ERROR"
)

// Error is a typed operation outcome. Status is the HTTP status the boundary
// layer should answer with; Err keeps the internal cause for logging only.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Response converts the error to the public envelope, never exposing Err
func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: e.Message, Code: e.Code}
}

func Validation(code, message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: ErrUnauthorized, Message: message}
}

// Upstream builds an error attributable to the external game site.
func Upstream(status int, code, message string, cause error) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: cause}
}

// Persistence hides the storage cause behind a generic message.
func Persistence(message string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: ErrPersistFailure, Message: message, Err: cause}
}
