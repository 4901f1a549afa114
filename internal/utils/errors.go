package utils

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Detail is the text placed in the "detail" field of an error envelope.
// It prefers the underlying failure so callers see what actually broke.
func (appErr *AppError) Detail() string {
	if appErr.Origin != nil {
		return appErr.Origin.Error()
	}
	return ""
}

// Standard error codes for the application
const (
	ErrInvalidInput     = "INVALID_INPUT"
	ErrMethodNotAllowed = "METHOD_NOT_ALLOWED"

	// Authentication errors
	ErrUnauthorized = "UNAUTHORIZED"
	ErrInvalidToken = "INVALID_TOKEN"

	// Upstream could not be reached at all; non-2xx replies are not errors
	ErrUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"

	// Dedup actor did not answer in time
	ErrActorTimeout = "ACTOR_TIMEOUT"

	ErrDatabase = "database_error"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

// NewUpstreamError wraps a transport failure. The message is the fixed label
// the proxy reports to callers.
func NewUpstreamError(err error) *AppError {
	return &AppError{
		Code:    ErrUpstreamUnavailable,
		Message: "Upstream error",
		Origin:  err,
	}
}

func NewUnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "Unauthorized: " + reason,
	}
}

func NewActorTimeoutError(actorName string, err error) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
		Origin:  err,
	}
}

// IsErrorCode reports whether err (or anything it wraps) is an AppError with code
func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Helper method to check if an error is related to authentication
func IsAuthError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrUnauthorized || appErr.Code == ErrInvalidToken
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidToken:
		return http.StatusUnauthorized
	case ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrUpstreamUnavailable:
		return http.StatusBadGateway
	case ErrDatabase, ErrActorTimeout:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
