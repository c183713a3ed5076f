// Package metric provides Prometheus metrics for DeltaMesh.
//
//   - prometheus.go: registry, HTTP request metrics and the /metrics handler
//   - collector.go: collector reading replication statistics on scrape
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
