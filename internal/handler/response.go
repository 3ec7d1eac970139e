package handler

// Every error response has the same shape:
//
//	{"error": "not_found", "message": "recommendation not found with id abc123"}
//
// Validation errors add the offending field:
//
//	{"error": "validation_error", "message": "title is required", "field": "title"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/hypeshelf/internal/apperror"
)

// ErrorResponse is the error body returned by every API endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // set for validation errors
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; anything set afterwards is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status.
//
// errors.Is walks the Unwrap chain, so a service error wrapped with
// fmt.Errorf("...: %w", apperror.NotFound(...)) still maps to 404.
// Errors that are not *apperror.AppError become a generic 500; their text
// may contain SQL or driver details and is never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized
			errorType = "unauthenticated"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
