package handlers

import (
	"net/http"

	"github.com/openalpha/perp-market/api/types"
)

// PoolHandler handles liquidity pool HTTP requests
type PoolHandler struct {
	service types.PoolService
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(service types.PoolService) *PoolHandler {
	return &PoolHandler{service: service}
}

// HandlePool handles /v1/pool endpoint (GET)
func (h *PoolHandler) HandlePool(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getPool(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

func (h *PoolHandler) getPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.service.GetPool(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_pool_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"pool": pool})
}
