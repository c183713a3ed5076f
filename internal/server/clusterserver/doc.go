// Package clusterserver connects replication managers across nodes.
//
// Membership is discovered over gossip (hashicorp/memberlist); each node
// gossips the address of its replication endpoint in its metadata.
// Messages travel as Connect unary calls carrying the binary message
// encoding. Each peer has its own ordered async queue and circuit breaker.
package clusterserver
