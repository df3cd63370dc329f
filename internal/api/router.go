package api

import (
	"database/sql"
	"net/http"

	"github.com/ryfazal/stocklog/internal/model"
	"github.com/ryfazal/stocklog/internal/ticketing"
)

// NewRouter creates the API router with all endpoints registered. The
// ticketing client may be nil, which disables external sync.
func NewRouter(db *sql.DB, jwtSecret string, sync *ticketing.Client) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	locationsHandler := &LocationsHandler{DB: db}
	transactionsHandler := &TransactionsHandler{DB: db, Sync: sync}
	confirmationsHandler := &ConfirmationsHandler{DB: db}
	inventoryHandler := &InventoryHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: read (all roles), write (manager+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(requireManager(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("GET /api/items/{sku}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{sku}/active", authMW(requireManager(http.HandlerFunc(itemsHandler.SetActive))))

	// Locations (all roles, read-only).
	mux.Handle("GET /api/locations", authMW(http.HandlerFunc(locationsHandler.List)))

	// Transactions (all roles).
	mux.Handle("POST /api/transactions", authMW(http.HandlerFunc(transactionsHandler.Create)))
	mux.Handle("GET /api/transactions", authMW(http.HandlerFunc(transactionsHandler.List)))
	mux.Handle("GET /api/transactions/{id}", authMW(http.HandlerFunc(transactionsHandler.Get)))
	mux.Handle("POST /api/transactions/{id}/complete", authMW(http.HandlerFunc(transactionsHandler.Complete)))
	mux.Handle("POST /api/transactions/{id}/cancel", authMW(http.HandlerFunc(transactionsHandler.Cancel)))
	mux.Handle("PUT /api/transactions/{id}/status", authMW(http.HandlerFunc(transactionsHandler.Transition)))

	// Pickup confirmations (all roles).
	mux.Handle("POST /api/transactions/{id}/pickup-code", authMW(http.HandlerFunc(confirmationsHandler.GenerateCode)))
	mux.Handle("POST /api/transactions/{id}/confirm-code", authMW(http.HandlerFunc(confirmationsHandler.ConfirmCode)))
	mux.Handle("POST /api/transactions/{id}/confirm-signature", authMW(http.HandlerFunc(confirmationsHandler.ConfirmSignature)))
	mux.Handle("GET /api/signatures/{id}", authMW(http.HandlerFunc(confirmationsHandler.GetSignature)))

	// Stock snapshots and ledger (all roles, read-only).
	mux.Handle("GET /api/stock", authMW(http.HandlerFunc(inventoryHandler.Snapshot)))
	mux.Handle("GET /api/stock/export", authMW(http.HandlerFunc(inventoryHandler.Export)))
	mux.Handle("GET /api/ledger", authMW(http.HandlerFunc(inventoryHandler.Ledger)))

	return mux
}
