// Package domain defines the core domain models for DeltaMesh.
//
// Domain models are pure entities without any IO dependencies or
// framework coupling. This package contains:
//
//   - Session: replicated HTTP-style session with attributes and
//     replication flags (valid, primary)
//   - DeltaRequest: the recorded mutations of a session since the last
//     replication, with a binary diff codec
//   - Session state codec used for bulk state transfer
//   - Errors: Domain-specific error definitions
package domain
