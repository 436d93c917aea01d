// Package handler contains the HTTP layer: request parsing, response
// shaping, and the mapping from domain errors to status codes. No business
// logic lives here.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tasnimbay/issuedeck/internal/apperror"
)

// errorResponse is the error body shape used by every endpoint.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON sends a JSON response. Headers must be set before the first
// body write, hence the fixed order here.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status. Tracker failures
// surface as 502 with the upstream status; anything unclassified becomes a
// generic 500 so internal detail never reaches clients.
func writeError(w http.ResponseWriter, err error) {
	var trackerErr *apperror.TrackerAPIError
	if errors.As(err, &trackerErr) {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: fmt.Sprintf("github api error (status %d)", trackerErr.StatusCode),
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}
		writeJSON(w, status, errorResponse{Error: appErr.Message})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
