// Package domain defines the core domain models for DeltaMesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes have the form DM-<AREA>-<NNNN>. The digits loosely follow HTTP
// status semantics (4xxx caller errors, 5xxx server side).
type DomainError struct {
	Code    string // Error code (e.g., "DM-SESS-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true // Only check if it's a DomainError
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates the requested session was not found.
	ErrSessionNotFound = NewDomainError("DM-SESS-4040", "session not found")

	// ErrSessionInvalid indicates the session exists but has been invalidated.
	ErrSessionInvalid = NewDomainError("DM-SESS-4041", "session invalidated")

	// ErrSessionConflict indicates the session ID already exists.
	ErrSessionConflict = NewDomainError("DM-SESS-4090", "session id conflict")

	// ErrSessionIDInvalid indicates a malformed session ID.
	ErrSessionIDInvalid = NewDomainError("DM-SESS-4001", "invalid session id")
)

// ============================================================================
// Replication Errors (REPL)
// ============================================================================

var (
	// ErrDiffEncode indicates a session delta could not be serialized.
	ErrDiffEncode = NewDomainError("DM-REPL-5001", "delta encode failed")

	// ErrDiffFormat indicates a received delta payload is corrupt.
	ErrDiffFormat = NewDomainError("DM-REPL-4001", "malformed delta payload")

	// ErrStateFormat indicates a serialized session state is corrupt.
	ErrStateFormat = NewDomainError("DM-REPL-4002", "malformed session state")

	// ErrSnapshotFormat indicates a bulk session payload is corrupt.
	ErrSnapshotFormat = NewDomainError("DM-REPL-4003", "malformed session snapshot")

	// ErrMessageFormat indicates a replication message could not be decoded.
	ErrMessageFormat = NewDomainError("DM-REPL-4004", "malformed replication message")

	// ErrManagerNotStarted indicates an operation requires a started manager.
	ErrManagerNotStarted = NewDomainError("DM-REPL-5030", "replication manager not started")

	// ErrManagerStarted indicates Start was called twice.
	ErrManagerStarted = NewDomainError("DM-REPL-4090", "replication manager already started")
)

// ============================================================================
// Cluster Errors (CLUS)
// ============================================================================

var (
	// ErrNoMembers indicates the cluster has no peers to talk to.
	ErrNoMembers = NewDomainError("DM-CLUS-5031", "no cluster members")

	// ErrMemberUnknown indicates the destination member is not known.
	ErrMemberUnknown = NewDomainError("DM-CLUS-4040", "unknown cluster member")

	// ErrSendFailed indicates a message could not be delivered.
	ErrSendFailed = NewDomainError("DM-CLUS-5020", "message delivery failed")

	// ErrCircuitOpen indicates the peer's circuit breaker rejected the send.
	ErrCircuitOpen = NewDomainError("DM-CLUS-5032", "peer circuit open")

	// ErrTransportClosed indicates the transport has been shut down.
	ErrTransportClosed = NewDomainError("DM-CLUS-5033", "transport closed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("DM-SYS-5000", "internal server error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("DM-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("DM-SYS-4000", "bad request")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("DM-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("DM-ARG-1002", "missing required argument")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = NewDomainError("DM-ARG-1004", "invalid configuration")
)
