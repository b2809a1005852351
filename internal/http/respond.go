package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"outlay/internal/core"
	"outlay/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain and storage errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var verr *core.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, core.ErrDuplicateName):
		status = http.StatusConflict
	case errors.As(err, &verr),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyDescription):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
