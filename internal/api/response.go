package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ryfazal/stocklog/internal/ledger"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// domainError maps engine errors to HTTP status codes. Anything outside the
// taxonomy is a persistence failure and stays opaque to the client.
func domainError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	var serr *ledger.IllegalStateError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrDuplicate):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrConfirmationRequired):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrExpiredCode):
		jsonError(w, http.StatusGone, err.Error())
	case errors.Is(err, ledger.ErrCodeMismatch):
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &serr):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.As(err, &verr):
		jsonError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("store failure", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
