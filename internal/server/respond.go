package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/alexjbarnes/filedrive/internal/errors"
	"github.com/alexjbarnes/filedrive/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses: validation failures
// are client errors, missing records are 404, transient store failures
// are 503 so the browser can retry, anything else from the store is 502.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusBadGateway

	switch {
	case errors.Is(err, apperrors.ErrEmptyName), errors.Is(err, apperrors.ErrReservedName):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case store.IsTransient(err):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
