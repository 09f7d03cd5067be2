package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"beantrack/internal/model"
	"beantrack/internal/supply"
)

// NewRouter creates the API router with all endpoints registered. The
// lifecycle endpoints only authenticate here; role and state guards run
// inside the state machine's transaction.
func NewRouter(db *sql.DB, svc *supply.Service, jwtSecret string, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, Log: log}
	usersHandler := &UsersHandler{DB: db, Log: log}
	rolesHandler := &RolesHandler{DB: db, Log: log}
	accountsHandler := &AccountsHandler{DB: db, Log: log}
	itemsHandler := &ItemsHandler{DB: db, Supply: svc}

	authMW := AuthMiddleware(jwtSecret)
	requireAdmin := RequireRole(db, model.RoleAdmin)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Principal credentials (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Role registry: grants are admin only, reads are open to any principal.
	mux.Handle("POST /api/roles", authMW(requireAdmin(http.HandlerFunc(rolesHandler.Grant))))
	mux.Handle("GET /api/roles/{principal}", authMW(http.HandlerFunc(rolesHandler.List)))

	// Settlement ledger.
	mux.Handle("POST /api/accounts/deposit", authMW(requireAdmin(http.HandlerFunc(accountsHandler.Deposit))))
	mux.Handle("GET /api/accounts/{principal}", authMW(http.HandlerFunc(accountsHandler.Get)))

	// Lifecycle transitions.
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Harvest)))
	mux.Handle("POST /api/items/{upc}/process", authMW(http.HandlerFunc(itemsHandler.Process)))
	mux.Handle("POST /api/items/{upc}/pack", authMW(http.HandlerFunc(itemsHandler.Pack)))
	mux.Handle("POST /api/items/{upc}/sell", authMW(http.HandlerFunc(itemsHandler.Sell)))
	mux.Handle("POST /api/items/{upc}/buy", authMW(http.HandlerFunc(itemsHandler.Buy)))
	mux.Handle("POST /api/items/{upc}/ship", authMW(http.HandlerFunc(itemsHandler.Ship)))
	mux.Handle("POST /api/items/{upc}/receive", authMW(http.HandlerFunc(itemsHandler.Receive)))
	mux.Handle("POST /api/items/{upc}/purchase", authMW(http.HandlerFunc(itemsHandler.Purchase)))

	// Queries.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/{upc}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("GET /api/items/{upc}/events", authMW(http.HandlerFunc(itemsHandler.GetEvents)))
	mux.Handle("PUT /api/items/{upc}/photo", authMW(http.HandlerFunc(itemsHandler.UploadPhoto)))
	mux.Handle("GET /api/items/{upc}/photo", authMW(http.HandlerFunc(itemsHandler.GetPhoto)))

	return mux
}
