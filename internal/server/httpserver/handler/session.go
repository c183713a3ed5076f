package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

// Session handlers bracket their work with access and finish. finish is
// the replication valve: it ends the access and sends whatever
// RequestCompleted decided the cluster must learn.

func (h *Handler) access(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrMissingArgument.Code, "session id is required", nil)
		return nil, false
	}
	s, err := h.manager.Sessions().FindSession(id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	if !s.IsValid() {
		h.handleServiceError(w, r, domain.ErrSessionInvalid.WithDetails(id))
		return nil, false
	}
	s.Access()
	return s, true
}

func (h *Handler) finish(r *http.Request, s *domain.Session) {
	s.EndAccess()
	h.manager.Send(r.Context(), h.manager.RequestCompleted(s.ID(), false))
}

// handleCreateSession handles POST /sessions.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", nil)
		return
	}

	s, err := h.manager.CreateSession(r.Context(), req.ID, true)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	s.Access()
	if req.MaxInactiveSeconds != nil {
		s.SetMaxInactive(time.Duration(*req.MaxInactiveSeconds) * time.Second)
	}
	for name, value := range req.Attributes {
		if err := s.SetAttribute(name, []byte(value)); err != nil {
			h.finish(r, s)
			h.handleServiceError(w, r, err)
			return
		}
	}
	h.finish(r, s)

	h.writeJSON(w, r, http.StatusCreated, sessionToResponse(s))
}

// handleListSessions handles GET /sessions. Listing does not touch the
// sessions, so nothing is replicated.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.Sessions().Sessions()
	items := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionToResponse(s))
	}
	h.writeJSON(w, r, http.StatusOK, ListSessionsResponse{
		Items: items,
		Total: len(items),
	})
}

// handleGetSession handles GET /sessions/{id}.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.access(w, r)
	if !ok {
		return
	}
	h.finish(r, s)
	h.writeJSON(w, r, http.StatusOK, sessionToResponse(s))
}

// handleSetAttribute handles PUT /sessions/{id}/attributes/{name}.
func (h *Handler) handleSetAttribute(w http.ResponseWriter, r *http.Request) {
	var req SetAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", nil)
		return
	}

	s, ok := h.access(w, r)
	if !ok {
		return
	}
	err := s.SetAttribute(r.PathValue("name"), []byte(req.Value))
	h.finish(r, s)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, sessionToResponse(s))
}

// handleRemoveAttribute handles DELETE /sessions/{id}/attributes/{name}.
func (h *Handler) handleRemoveAttribute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.access(w, r)
	if !ok {
		return
	}
	s.RemoveAttribute(r.PathValue("name"))
	h.finish(r, s)
	h.writeJSON(w, r, http.StatusOK, sessionToResponse(s))
}

// handleRotateSession handles POST /sessions/{id}/rotate.
func (h *Handler) handleRotateSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.access(w, r)
	if !ok {
		return
	}
	oldID := s.ID()
	newID, err := h.manager.RotateSessionID(r.Context(), s)
	h.finish(r, s)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, RotateSessionResponse{OldID: oldID, NewID: newID})
}

// handleInvalidateSession handles DELETE /sessions/{id}.
func (h *Handler) handleInvalidateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.manager.Invalidate(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}
