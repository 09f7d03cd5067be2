package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"beantrack/internal/model"
	"beantrack/internal/store"
)

// RolesHandler handles role registry endpoints. Grants are admin-only; there
// is no revoke endpoint because the registry has no revoke operation.
type RolesHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

type grantRoleRequest struct {
	Principal string `json:"principal"`
	Role      string `json:"role"`
}

// Grant handles POST /api/roles.
func (h *RolesHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Principal == "" {
		jsonError(w, http.StatusBadRequest, "principal required")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := store.GrantRole(r.Context(), h.DB, req.Principal, req.Role); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to grant role")
		return
	}

	h.Log.Info("role granted",
		zap.String("principal", req.Principal),
		zap.String("role", req.Role),
		zap.String("granted_by", GetPrincipal(r.Context())),
	)
	jsonResponse(w, http.StatusOK, map[string]string{
		"principal": req.Principal,
		"role":      req.Role,
	})
}

// List handles GET /api/roles/{principal}.
func (h *RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := r.PathValue("principal")
	if principal == "" {
		jsonError(w, http.StatusBadRequest, "principal required")
		return
	}

	roles, err := store.ListRoles(r.Context(), h.DB, principal)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}
	if roles == nil {
		roles = []string{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"principal": principal,
		"roles":     roles,
	})
}
