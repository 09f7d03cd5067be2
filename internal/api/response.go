package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"beantrack/internal/model"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Warn("encoding response", zap.Error(err))
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

// lifecycleError maps the state machine's error taxonomy onto HTTP statuses.
func lifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrDuplicateItem):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidState):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrInsufficientPayment):
		jsonError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, model.ErrSettlementFailure):
		jsonError(w, http.StatusPaymentRequired, err.Error())
	default:
		zap.L().Error("lifecycle operation failed", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
