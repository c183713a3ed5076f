// Package main provides the entry point for deltamesh-server.
//
// A server node holds the sessions of one application context and keeps
// them in step with its peers:
//
//   - memberlist gossip finds the other nodes
//   - a connect endpoint carries replication messages between them
//   - on start the node pulls the full session state from the oldest peer
//   - an HTTP API serves sessions, replication statistics and /metrics
//
// Usage:
//
//	deltamesh-server [flags]
//	deltamesh-server --config /path/to/config.yaml --seed 10.0.0.1:7946
package main
