// Package handler contains the HTTP layer: request decoding, response
// encoding, and the single place where domain errors map to status codes.
// Handlers never contain business rules; they translate between HTTP and
// the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/learnpath/internal/apperror"
)

// ErrorResponse is the standard error shape returned by every API endpoint:
// a machine-readable type plus a human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends a JSON response. Headers and status must be written
// before the body; once Encode writes, header changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status. Services return
// apperror sentinels, never status codes; this is the only translation
// point.
func writeError(w http.ResponseWriter, err error) {
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
		case errors.Is(err, apperror.ErrFormat):
			// The external generator replied with something unusable.
			// The request itself was fine, so this is a server-side
			// failure from the client's point of view.
			status = http.StatusBadGateway
			errorType = "generation_failed"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error: generic 500. The raw message may contain SQL or
	// paths, so it never reaches the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst, capped at 1 MiB. Unknown
// fields are tolerated so clients can round-trip fetched resources (which
// carry ids and timestamps) straight back into update requests.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON request body")
	}
	return nil
}
