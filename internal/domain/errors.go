package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a failure independently of where it happened.
type ErrorCode string

const (
	CodeBadRequest      ErrorCode = "bad_request"
	CodeUnauthorized    ErrorCode = "unauthorized"
	CodeForbidden       ErrorCode = "forbidden"
	CodeNotFound        ErrorCode = "not_found"
	CodeRateLimit       ErrorCode = "rate_limit"
	CodeOffline         ErrorCode = "offline"
	CodeBillingRequired ErrorCode = "billing_required"
)

// Surface identifies which part of the system produced an error.
// Internal surfaces (database) never expose their cause to clients.
type Surface string

const (
	SurfaceChat     Surface = "chat"
	SurfaceAuth     Surface = "auth"
	SurfaceAPI      Surface = "api"
	SurfaceStream   Surface = "stream"
	SurfaceProvider Surface = "provider"
	SurfaceDatabase Surface = "database"
)

// ChatError is the structured error returned on every failing request path.
// Cause carries internal detail; whether it is echoed to the client depends
// on the surface (see Visible).
type ChatError struct {
	Code    ErrorCode `json:"code"`
	Surface Surface   `json:"-"`
	Message string    `json:"message"`
	Cause   string    `json:"cause,omitempty"`
}

func (e *ChatError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%s:%s: %s (%s)", e.Code, e.Surface, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s:%s: %s", e.Code, e.Surface, e.Message)
}

// StatusCode maps the error code to an HTTP status.
func (e *ChatError) StatusCode() int {
	switch e.Code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeBillingRequired:
		return http.StatusPaymentRequired
	case CodeOffline:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Visible reports whether the cause may be shown to the client.
// Database and other internal surfaces are logged only.
func (e *ChatError) Visible() bool {
	return e.Surface != SurfaceDatabase
}

// Is allows errors.Is matching against the sentinel for the same code.
func (e *ChatError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrUnauthorized:
		return e.Code == CodeUnauthorized
	case ErrForbidden:
		return e.Code == CodeForbidden
	case ErrValidation:
		return e.Code == CodeBadRequest
	}
	return false
}

// NewChatError builds a ChatError with the default user-facing message for
// the code. cause is internal detail and may be empty.
func NewChatError(code ErrorCode, surface Surface, cause string) *ChatError {
	return &ChatError{
		Code:    code,
		Surface: surface,
		Message: messageForCode(code),
		Cause:   cause,
	}
}

func messageForCode(code ErrorCode) string {
	switch code {
	case CodeBadRequest:
		return "The request couldn't be processed. Please check your input and try again."
	case CodeUnauthorized:
		return "You need to sign in before continuing."
	case CodeForbidden:
		return "This resource belongs to another user."
	case CodeNotFound:
		return "The requested resource was not found."
	case CodeRateLimit:
		return "You have exceeded your request allowance. Please try again later."
	case CodeBillingRequired:
		return "The model provider requires an active payment method. Please update billing and retry."
	case CodeOffline:
		return "The model provider is currently unreachable. Please try again later."
	default:
		return "Something went wrong. Please try again later."
	}
}

// Sentinel errors for backwards-compatible matching - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
