// Package logger provides structured logging for DeltaMesh.
//
// It wraps log/slog:
//
//   - logger.go: handler construction and the runtime-adjustable level
//   - context.go: request-scoped loggers and request IDs
//   - redact.go: masking of session attribute values and payloads
//
// Components receive the underlying *slog.Logger through Logger.Slog.
package logger
