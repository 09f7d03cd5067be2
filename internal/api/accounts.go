package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"beantrack/internal/model"
	"beantrack/internal/store"
)

// AccountsHandler handles settlement ledger endpoints.
type AccountsHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

type depositRequest struct {
	Principal string `json:"principal"`
	Amount    int64  `json:"amount"`
}

// Deposit handles POST /api/accounts/deposit (admin only).
func (h *AccountsHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Principal == "" {
		jsonError(w, http.StatusBadRequest, "principal required")
		return
	}
	if req.Amount <= 0 {
		jsonError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	acct, err := store.Deposit(r.Context(), h.DB, req.Principal, req.Amount)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to deposit")
		return
	}

	h.Log.Info("deposit",
		zap.String("principal", req.Principal),
		zap.Int64("amount", req.Amount),
		zap.String("deposited_by", GetPrincipal(r.Context())),
	)
	jsonResponse(w, http.StatusOK, acct)
}

// Get handles GET /api/accounts/{principal}. Principals may read their own
// balance; only admins may read anyone else's.
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := r.PathValue("principal")
	if principal == "" {
		jsonError(w, http.StatusBadRequest, "principal required")
		return
	}

	caller := GetPrincipal(r.Context())
	if caller != principal {
		isAdmin, err := store.HasRole(r.Context(), h.DB, caller, model.RoleAdmin)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !isAdmin {
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
	}

	acct, err := store.GetAccount(r.Context(), h.DB, principal)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	jsonResponse(w, http.StatusOK, acct)
}
