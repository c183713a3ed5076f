package handler

import (
	"net/http"

	"github.com/yndnr/deltamesh-go/internal/telemetry/logger"
)

// handleStats handles GET /admin/v1/replication/stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.manager.Statistics().Snapshot())
}

// handleResetStats handles POST /admin/v1/replication/stats/reset.
func (h *Handler) handleResetStats(w http.ResponseWriter, r *http.Request) {
	h.manager.ResetStatistics()
	logger.L(r.Context()).Info("statistics reset over admin api")
	h.writeJSON(w, r, http.StatusOK, h.manager.Statistics().Snapshot())
}

// handleState handles GET /admin/v1/replication/state.
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, StateResponse{
		Context:           h.manager.Name(),
		State:             h.manager.State().String(),
		StateTransferred:  h.manager.StateTransferred(),
		NoContextManager:  h.manager.NoContextManagerReceived(),
		ReceivedQueueSize: h.manager.ReceivedQueueSize(),
		Members:           membersToStrings(h.manager.Members()),
	})
}
