// Package httpserver provides the HTTP server for DeltaMesh.
//
// It uses the Go standard library net/http and exposes:
//
//   - Session endpoints: /sessions, /sessions/{id}, attributes and rotate
//   - Replication admin endpoints: /admin/v1/replication/*
//   - Health endpoints: /health, /ready, /metrics
//
// Every request passes Recover, RequestID and AccessLog; Prometheus
// instrumentation and per-IP rate limiting are optional.
package httpserver
