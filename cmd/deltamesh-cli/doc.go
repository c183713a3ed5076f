// Package main provides the entry point for deltamesh-cli, the
// command-line client for a deltamesh-server node's HTTP API.
//
// Usage:
//
//	deltamesh-cli [global flags] <command> [args]
//	deltamesh-cli --server 127.0.0.1:8080 session list
//	deltamesh-cli -o json replication stats
package main
