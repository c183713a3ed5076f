// Package command defines the deltamesh-cli commands on top of
// urfave/cli/v2.
//
// Commands talk to one node's HTTP API, chosen by --server, by a saved
// connection, or by the current connection in the settings file:
//
//	deltamesh-cli session list
//	deltamesh-cli -o yaml replication stats
//	deltamesh-cli replication state --wait 1m
//	deltamesh-cli connection add prod 10.0.0.1:8080 --use
package command
