package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// Without helpers, every handler repeats the same boilerplate:
//   w.Header().Set("Content-Type", "application/json")
//   w.WriteHeader(statusCode)
//   json.NewEncoder(w).Encode(data)
//
// With helpers, handlers stay short:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "validation_error", "code": "MISSING_DEVICE_ID", "message": "deviceId is required", "field": "deviceId"}
//
// "error" is the broad category, "code" the stable reason sync clients
// switch on. "code" and "field" are omitted when there is nothing to say.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/spacesync/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable category (e.g., "not_found")
	Code    string `json:"code,omitempty"`  // Stable reason, e.g. MISSING_CHANGES
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending request field, if known
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written. Once
// Encode calls w.Write, the headers are on the wire and later changes
// are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status code, sends it, and
// returns the status so callers can decide whether to log.
//
// ERROR MAPPING:
// The engine and service layers return apperror sentinels and never see
// HTTP. This is the one place they become status codes:
//
//	ErrValidation   → 400    ErrUnauthorized → 401
//	ErrForbidden    → 403    ErrNotFound     → 404
//	ErrConflict     → 409    ErrTooLarge     → 413
//
// errors.Is walks the whole Unwrap chain, so
// fmt.Errorf("...: %w", apperror.Conflict(...)) still maps to 409.
func writeError(w http.ResponseWriter, err error) int {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge
			errorType = "payload_too_large"
		}

		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Code:    appErr.Code,
				Message: appErr.Message,
				Field:   appErr.Field,
			})
			return status
		}
	}

	// Unknown error: never expose internal details (SQL, file paths) to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
	return http.StatusInternalServerError
}
