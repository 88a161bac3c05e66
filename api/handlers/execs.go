package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/openalpha/perp-market/api/types"
)

// ExecHandler handles deferred execution queue HTTP requests
type ExecHandler struct {
	service types.ExecService
}

// NewExecHandler creates a new deferred execution handler
func NewExecHandler(service types.ExecService) *ExecHandler {
	return &ExecHandler{service: service}
}

// HandleDeferredExecs handles /v1/deferred-execs endpoint (GET for list)
func (h *ExecHandler) HandleDeferredExecs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listDeferredExecs(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// HandleDeferredExec handles /v1/deferred-execs/{id} endpoint (GET)
func (h *ExecHandler) HandleDeferredExec(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	prefix := "/v1/deferred-execs/"
	if !strings.HasPrefix(path, prefix) {
		writeError(w, http.StatusBadRequest, "invalid_path", "Invalid path")
		return
	}
	idStr := strings.TrimPrefix(path, prefix)
	if idStr == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "Deferred exec ID is required")
		return
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Deferred exec ID must be a number")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getDeferredExec(w, r, id)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// listDeferredExecs handles GET /v1/deferred-execs?owner=...&start_after=...&limit=...
func (h *ExecHandler) listDeferredExecs(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = r.Header.Get("X-Trader-Address")
	}
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing_owner", "owner address is required")
		return
	}

	var startAfter uint64
	if s := r.URL.Query().Get("start_after"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_after", "start_after must be a number")
			return
		}
		startAfter = v
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive number")
			return
		}
		limit = v
	}

	resp, err := h.service.ListDeferredExecs(r.Context(), owner, startAfter, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_execs_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// getDeferredExec handles GET /v1/deferred-execs/{id}
func (h *ExecHandler) getDeferredExec(w http.ResponseWriter, r *http.Request, id uint64) {
	exec, err := h.service.GetDeferredExec(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "exec_not_found", err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "get_exec_failed", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deferred_exec": exec})
}

// ============ Shared helpers ============

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
