// Package handler provides HTTP request handlers for DeltaMesh.
//
// This package contains handlers for all HTTP endpoints:
//
//   - session.go: session endpoints that drive replication the way a
//     request valve does, finishing every request with RequestCompleted
//   - replication.go: replication statistics and handshake state
//   - health.go: health and readiness checks
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Call the delta manager
//   - Format and return response
//   - Handle errors with appropriate HTTP status codes
package handler
