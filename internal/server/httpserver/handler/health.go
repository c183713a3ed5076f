package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/deltamesh-go/internal/infra/buildinfo"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.Get()
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": info.Version,
		"commit":  info.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. A node is ready once its manager
// finished starting, including the state transfer.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	state := h.manager.State()
	if !h.manager.Ready() {
		h.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"state":  state.String(),
		})
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"state":  state.String(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
