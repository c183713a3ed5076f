// Package service provides the base session manager for DeltaMesh.
//
// SessionService owns the local session registry and the session
// lifecycle: creation, lookup, ID changes, expiry and the background
// sweep of idle sessions. It knows nothing about the cluster; the
// replication package layers cluster notifications on top of it.
//
// Listeners registered on the service are invoked synchronously on the
// goroutine that caused the event and must not block.
package service
