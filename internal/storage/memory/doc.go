// Package memory provides the in-memory session registry for DeltaMesh.
//
// Sessions are kept in a sharded concurrent map keyed by session ID.
// Replication never persists sessions; a restarted node rebuilds its
// registry through state transfer from a peer.
package memory
