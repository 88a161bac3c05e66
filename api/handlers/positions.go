package handlers

import (
	"net/http"

	"github.com/openalpha/perp-market/api/types"
)

// PositionHandler handles position and limit order HTTP requests
type PositionHandler struct {
	service types.PositionService
}

// NewPositionHandler creates a new position handler
func NewPositionHandler(service types.PositionService) *PositionHandler {
	return &PositionHandler{service: service}
}

// HandlePositions handles /v1/positions endpoint (GET for list)
func (h *PositionHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listPositions(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// HandleLimitOrders handles /v1/orders endpoint (GET for list)
func (h *PositionHandler) HandleLimitOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listLimitOrders(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// listPositions handles GET /v1/positions?owner=...
func (h *PositionHandler) listPositions(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = r.Header.Get("X-Trader-Address")
	}

	positions, err := h.service.GetPositions(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_positions_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"total":     len(positions),
	})
}

// listLimitOrders handles GET /v1/orders?owner=...
func (h *PositionHandler) listLimitOrders(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = r.Header.Get("X-Trader-Address")
	}

	orders, err := h.service.GetLimitOrders(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_orders_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  len(orders),
	})
}
