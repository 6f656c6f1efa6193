// Package apperror defines the domain errors shared by every layer.
//
// The service and engine layers return these; only the HTTP handler knows how
// to turn them into status codes (see handler/response.go).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTooLarge     = errors.New("payload too large")
)

// Stable machine-readable codes for request-level sync validation failures.
// Clients switch on these, so they must never change.
const (
	CodeMissingDeviceID   = "MISSING_DEVICE_ID"
	CodeMissingChanges    = "MISSING_CHANGES"
	CodeMissingBackupData = "MISSING_BACKUP_DATA"
	CodeInvalidJSON       = "INVALID_JSON"
	CodeInvalidTimestamp  = "INVALID_TIMESTAMP"
	CodeInvalidRecord     = "INVALID_RECORD"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
)

type AppError struct {
	Err     error  // actual error
	Code    string // Optional: stable machine-readable code, e.g. MISSING_DEVICE_ID
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidRequest is a validation error carrying one of the stable Code* values.
// HTTP handlers map this to 400 Bad Request and echo the code to the client.
func InvalidRequest(code, field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for missing or bad credentials.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// TooLarge is returned when a request body exceeds limit bytes.
func TooLarge(limit int64) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Code:    CodePayloadTooLarge,
		Message: fmt.Sprintf("request body exceeds %d bytes", limit),
	}
}
