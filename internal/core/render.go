package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eteran/bucketd/internal/form"
	"github.com/eteran/bucketd/internal/hooks"
	"github.com/eteran/bucketd/internal/storage"
)

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// StatusFor maps an operation error to the HTTP status it is answered with.
func StatusFor(err error) int {
	var (
		rejectErr    *hooks.RejectError
		hookErr      *hooks.Error
		parseErr     *ParseError
		statusErr    *storage.StatusError
		transportErr *storage.TransportError
	)

	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, form.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &rejectErr):
		if status := rejectErr.HTTPStatus(); status >= 400 && status <= 599 {
			return status
		}
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &hookErr):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		if statusErr.StatusCode >= 400 && statusErr.StatusCode <= 499 {
			return statusErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

// writeError renders err as a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	var rejectErr *hooks.RejectError
	message := err.Error()
	if errors.As(err, &rejectErr) {
		message = rejectErr.Error()
	}

	writeJSON(w, status, errorResponse{
		Status:  status,
		Message: message,
	})
}

// render writes o to w.
func render(w http.ResponseWriter, r *http.Request, o Outcome) {
	switch {
	case o.Err != nil:
		writeError(w, o.Err)
	case o.Location != "":
		http.Redirect(w, r, o.Location, o.Status)
	case o.Body == nil:
		w.WriteHeader(o.Status)
	default:
		writeJSON(w, o.Status, o.Body)
	}
}
