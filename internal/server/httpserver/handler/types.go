package handler

import (
	"time"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
	"github.com/yndnr/deltamesh-go/internal/core/replication"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CreateSessionRequest is the request body for POST /sessions.
// Every field is optional; an empty ID is generated.
type CreateSessionRequest struct {
	ID                 string            `json:"id,omitempty"`
	MaxInactiveSeconds *int64            `json:"max_inactive_seconds,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

// SetAttributeRequest is the request body for PUT /sessions/{id}/attributes/{name}.
type SetAttributeRequest struct {
	Value string `json:"value"`
}

// RotateSessionResponse is the response body for POST /sessions/{id}/rotate.
type RotateSessionResponse struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID                 string            `json:"id"`
	Primary            bool              `json:"primary"`
	Valid              bool              `json:"valid"`
	CreatedAt          time.Time         `json:"created_at"`
	LastAccessedAt     time.Time         `json:"last_accessed_at"`
	MaxInactiveSeconds int64             `json:"max_inactive_seconds"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

// ListSessionsResponse is the response body for GET /sessions.
type ListSessionsResponse struct {
	Items []SessionResponse `json:"items"`
	Total int               `json:"total"`
}

// StateResponse is the response body for GET /admin/v1/replication/state.
type StateResponse struct {
	Context           string   `json:"context"`
	State             string   `json:"state"`
	StateTransferred  bool     `json:"state_transferred"`
	NoContextManager  bool     `json:"no_context_manager"`
	ReceivedQueueSize int      `json:"received_queue_size"`
	Members           []string `json:"members"`
}

// sessionToResponse converts a domain.Session to a SessionResponse.
func sessionToResponse(s *domain.Session) SessionResponse {
	resp := SessionResponse{
		ID:             s.ID(),
		Primary:        s.IsPrimary(),
		Valid:          s.IsValid(),
		CreatedAt:      time.UnixMilli(s.CreationTime()),
		LastAccessedAt: time.UnixMilli(s.LastAccessedTime()),
	}
	if d := s.MaxInactive(); d >= 0 {
		resp.MaxInactiveSeconds = int64(d / time.Second)
	} else {
		resp.MaxInactiveSeconds = -1
	}
	if attrs := s.Attributes(); len(attrs) > 0 {
		resp.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			resp.Attributes[k] = string(v)
		}
	}
	return resp
}

func membersToStrings(members []replication.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.String()
	}
	return out
}
