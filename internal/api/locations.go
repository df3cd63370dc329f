package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/ryfazal/stocklog/internal/model"
	"github.com/ryfazal/stocklog/internal/store"
)

// LocationsHandler serves the location registry. Locations are created
// implicitly by transactions, so this is read-only.
type LocationsHandler struct {
	DB *sql.DB
}

// List handles GET /api/locations.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := store.ListLocations(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list locations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	jsonResponse(w, http.StatusOK, locations)
}
