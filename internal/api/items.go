package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/ryfazal/stocklog/internal/ledger"
	"github.com/ryfazal/stocklog/internal/model"
	"github.com/ryfazal/stocklog/internal/store"
)

// ItemsHandler handles item catalog endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

type createItemRequest struct {
	SKU        string            `json:"sku"`
	Name       string            `json:"name"`
	Unit       string            `json:"unit"`
	Tags       map[string]string `json:"tags"`
	InitialQty int               `json:"initial_qty"`
	Location   string            `json:"location"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type itemDetail struct {
	model.Item
	Stock []ledger.Level `json:"stock"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	items, err := store.ListItems(r.Context(), h.DB, includeInactive)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.AddItem(r.Context(), h.DB, req.SKU, req.Name, req.Unit, req.Tags, req.InitialQty, req.Location)
	if err != nil {
		domainError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item added", "user", claims.Username, "sku", item.SKU, "initial_qty", req.InitialQty)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{sku}. The response includes current stock
// levels derived from the transaction log.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")

	item, err := store.GetItem(r.Context(), h.DB, sku)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	txns, err := store.ListTransactions(r.Context(), h.DB, store.TxFilter{SKU: sku, Status: model.StatusCompleted})
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute stock")
		return
	}

	jsonResponse(w, http.StatusOK, itemDetail{Item: *item, Stock: ledger.Snapshot(txns, sku)})
}

// SetActive handles PUT /api/items/{sku}/active. Deactivated items keep
// their history but reject new transactions.
func (h *ItemsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")

	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetItemActive(r.Context(), h.DB, sku, req.Active); err != nil {
		domainError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item active flag changed", "user", claims.Username, "sku", sku, "active", req.Active)
	jsonResponse(w, http.StatusOK, map[string]any{"sku": sku, "active": req.Active})
}
