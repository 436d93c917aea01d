// Package apperror defines the application's error taxonomy.
//
// Services return these; the handler boundary maps them to HTTP status codes
// with errors.Is/errors.As. No layer below the handlers knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrPersistence  = errors.New("persistence error")
)

// AppError carries a sentinel (for errors.Is classification) plus a
// human-readable message safe to return to API clients.
type AppError struct {
	Err     error  // sentinel, classifies the failure
	Message string // human-readable error message
	Field   string // optional: request field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// TrackerAPIError is a non-2xx response from the GitHub API. It keeps the
// status code and raw body so callers can decide what to do (the bulk update
// path reports it per item, everything else propagates it).
type TrackerAPIError struct {
	StatusCode int
	Body       string
}

func (e *TrackerAPIError) Error() string {
	return fmt.Sprintf("github api error: %d %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth retrying: rate limits and
// server-side errors are, any other 4xx is not.
func (e *TrackerAPIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
