package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ryfazal/stocklog/internal/imaging"
	"github.com/ryfazal/stocklog/internal/store"
)

// ConfirmationsHandler handles the pickup confirmation endpoints.
type ConfirmationsHandler struct {
	DB *sql.DB
}

type pickupCodeRequest struct {
	Picker string `json:"picker"`
}

type pickupCodeResponse struct {
	Code      string     `json:"code"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type confirmCodeRequest struct {
	Picker string `json:"picker"`
	Code   string `json:"code"`
}

// GenerateCode handles POST /api/transactions/{id}/pickup-code. Reissuing
// invalidates any previously issued code. The code is returned exactly once,
// here; it is never included in transaction responses.
func (h *ConfirmationsHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req pickupCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conf, err := store.GenerateCode(r.Context(), h.DB, id, req.Picker)
	if err != nil {
		domainError(w, err)
		return
	}

	slog.Info("pickup code issued", "id", id, "picker", req.Picker)
	jsonResponse(w, http.StatusCreated, pickupCodeResponse{Code: conf.Code, ExpiresAt: conf.CodeExpiresAt})
}

// ConfirmCode handles POST /api/transactions/{id}/confirm-code.
func (h *ConfirmationsHandler) ConfirmCode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req confirmCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conf, err := store.ConfirmByCode(r.Context(), h.DB, id, req.Picker, req.Code)
	if err != nil {
		domainError(w, err)
		return
	}

	slog.Info("pickup confirmed", "id", id, "picker", conf.Picker, "method", conf.Method)
	jsonResponse(w, http.StatusOK, conf)
}

// ConfirmSignature handles POST /api/transactions/{id}/confirm-signature.
// Expects a multipart form with a "signature" image and a "picker" field.
// The image is downscaled and recompressed before storage.
func (h *ConfirmationsHandler) ConfirmSignature(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Limit to 5 MB.
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)
	if err := r.ParseMultipartForm(5 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	picker := r.FormValue("picker")

	file, _, err := r.FormFile("signature")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "signature image required")
		return
	}
	defer file.Close()

	result, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	sigID, err := store.CreateSignature(r.Context(), h.DB, result.Data, result.MIME)
	if err != nil {
		domainError(w, err)
		return
	}

	conf, err := store.ConfirmBySignature(r.Context(), h.DB, id, picker, sigID)
	if err != nil {
		domainError(w, err)
		return
	}

	slog.Info("pickup confirmed", "id", id, "picker", conf.Picker, "method", conf.Method)
	jsonResponse(w, http.StatusOK, conf)
}

// GetSignature handles GET /api/signatures/{id} and serves the stored
// signature image.
func (h *ConfirmationsHandler) GetSignature(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid signature id")
		return
	}

	data, mime, err := store.GetSignature(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get signature", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get signature")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "signature not found")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Write(data)
}
