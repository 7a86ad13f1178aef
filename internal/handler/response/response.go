// Package response writes the JSON envelope shared by every endpoint:
// {"success": true, ...} on success and {"success": false, "error": ...}
// on failure.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/laala/laala-api/internal/domain"
)

// ErrorBody is the failure envelope.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// Data writes {"success": true, "data": data}.
func Data(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, map[string]interface{}{"success": true, "data": data})
}

// Message writes {"success": true, "message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]interface{}{"success": true, "message": msg})
}

// Error writes the failure envelope.
func Error(w http.ResponseWriter, status int, msg, details string) {
	JSON(w, status, ErrorBody{Success: false, Error: msg, Details: details})
}

// StatusFromError maps typed domain errors to HTTP status codes. Anything
// else is a downstream failure.
func StatusFromError(err error) int {
	var (
		validation   *domain.ValidationError
		authn        *domain.AuthenticationError
		accessDenied *domain.AccessDeniedError
		notFound     *domain.NotFoundError
		conflict     *domain.ConflictError
		disabled     *domain.FeatureDisabledError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &authn):
		return http.StatusUnauthorized
	case errors.As(err, &accessDenied):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &disabled):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes err with its mapped status. Downstream failures are
// logged once here and returned as "internal error" with the cause in details.
func FromError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFromError(err)
	if status != http.StatusInternalServerError {
		Error(w, status, err.Error(), "")
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	Error(w, status, "internal error", err.Error())
}
