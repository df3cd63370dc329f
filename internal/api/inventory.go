package api

import (
	"database/sql"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ryfazal/stocklog/internal/ledger"
	"github.com/ryfazal/stocklog/internal/model"
	"github.com/ryfazal/stocklog/internal/store"
)

// InventoryHandler serves stock snapshots and ledger rows derived from the
// transaction log. Nothing here writes: levels are recomputed on every read.
type InventoryHandler struct {
	DB *sql.DB
}

func (h *InventoryHandler) completed(r *http.Request, sku string) ([]model.Transaction, error) {
	return store.ListTransactions(r.Context(), h.DB, store.TxFilter{SKU: sku, Status: model.StatusCompleted})
}

// Snapshot handles GET /api/stock. Accepts an optional ?sku= filter.
func (h *InventoryHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")

	txns, err := h.completed(r, sku)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute stock")
		return
	}

	levels := ledger.Snapshot(txns, sku)
	if levels == nil {
		levels = []ledger.Level{}
	}
	jsonResponse(w, http.StatusOK, levels)
}

// Ledger handles GET /api/ledger. Returns the per-transaction stock deltas
// behind the snapshot, optionally filtered by ?sku=.
func (h *InventoryHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")

	txns, err := h.completed(r, sku)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute ledger")
		return
	}

	rows := ledger.Project(txns)
	if rows == nil {
		rows = []ledger.Row{}
	}
	jsonResponse(w, http.StatusOK, rows)
}

// Export handles GET /api/stock/export. Supports format=csv (default) and
// format=json.
func (h *InventoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")

	txns, err := h.completed(r, sku)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute stock")
		return
	}
	levels := ledger.Snapshot(txns, sku)

	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="stock.csv"`)
		cw := csv.NewWriter(w)
		cw.Write([]string{"sku", "location", "quantity"})
		for _, l := range levels {
			cw.Write([]string{l.SKU, l.Location, strconv.Itoa(l.Quantity)})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			slog.Error("failed to write csv export", "error", err)
		}
	case "json":
		if levels == nil {
			levels = []ledger.Level{}
		}
		jsonResponse(w, http.StatusOK, levels)
	default:
		jsonError(w, http.StatusBadRequest, "unknown export format")
	}
}
