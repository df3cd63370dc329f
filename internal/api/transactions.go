package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/ryfazal/stocklog/internal/model"
	"github.com/ryfazal/stocklog/internal/store"
	"github.com/ryfazal/stocklog/internal/ticketing"
)

// TransactionsHandler handles the transaction log endpoints.
type TransactionsHandler struct {
	DB   *sql.DB
	Sync *ticketing.Client
}

type createTransactionRequest struct {
	Type     string `json:"type"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	From     string `json:"from"`
	To       string `json:"to"`
	Ref      string `json:"ref"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

// Create handles POST /api/transactions.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := store.CreateParams{
		Type:     req.Type,
		SKU:      req.SKU,
		Quantity: req.Quantity,
		From:     req.From,
		To:       req.To,
		Ref:      req.Ref,
	}
	if claims := GetClaims(r.Context()); claims != nil {
		params.CreatedBy = &claims.UserID
	}

	txn, err := store.CreateTransaction(r.Context(), h.DB, params)
	if err != nil {
		domainError(w, err)
		return
	}

	slog.Info("transaction created", "id", txn.ID, "type", txn.Type, "sku", txn.SKU, "qty", txn.Quantity)
	h.notifySync(txn)
	jsonResponse(w, http.StatusCreated, txn)
}

// List handles GET /api/transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TxFilter{
		SKU:    q.Get("sku"),
		Status: q.Get("status"),
		Type:   q.Get("type"),
	}

	txns, err := store.ListTransactions(r.Context(), h.DB, filter)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	jsonResponse(w, http.StatusOK, txns)
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	txn, err := store.GetTransaction(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get transaction", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}
	if txn == nil {
		jsonError(w, http.StatusNotFound, "transaction not found")
		return
	}
	jsonResponse(w, http.StatusOK, txn)
}

// Complete handles POST /api/transactions/{id}/complete.
func (h *TransactionsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	txn, err := store.CompleteTransaction(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		domainError(w, err)
		return
	}

	slog.Info("transaction completed", "id", txn.ID, "type", txn.Type, "sku", txn.SKU)
	h.notifySync(txn)
	jsonResponse(w, http.StatusOK, txn)
}

// Cancel handles POST /api/transactions/{id}/cancel.
func (h *TransactionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	txn, err := store.CancelTransaction(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		domainError(w, err)
		return
	}

	slog.Info("transaction cancelled", "id", txn.ID, "type", txn.Type, "sku", txn.SKU)
	h.notifySync(txn)
	jsonResponse(w, http.StatusOK, txn)
}

// Transition handles PUT /api/transactions/{id}/status for the remaining
// moves, currently only open to in_transit.
func (h *TransactionsHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := store.TransitionTransaction(r.Context(), h.DB, r.PathValue("id"), req.Status)
	if err != nil {
		domainError(w, err)
		return
	}

	slog.Info("transaction transitioned", "id", txn.ID, "status", txn.Status)
	h.notifySync(txn)
	jsonResponse(w, http.StatusOK, txn)
}

// notifySync pushes the transaction to the ticketing system in the
// background. Sync is best effort: failures are logged and never block or
// fail the request.
func (h *TransactionsHandler) notifySync(txn *model.Transaction) {
	if h.Sync == nil {
		return
	}
	ticket := ticketing.FromTransaction(txn)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ref, err := h.Sync.Upsert(ctx, ticket)
		if err != nil {
			slog.Warn("ticketing sync failed", "id", ticket.TxID, "error", err)
			return
		}
		if ref != "" {
			if err := store.SetTicketRef(ctx, h.DB, ticket.TxID, ref); err != nil {
				slog.Warn("failed to record ticket ref", "id", ticket.TxID, "error", err)
			}
		}
	}()
}
