// Package replication implements delta session replication between
// cluster nodes.
//
// DeltaManager sits on top of the base session manager and decides,
// for every completed request, whether the cluster must hear about it:
// a SESSION_DELTA when attributes changed, a SESSION_ACCESSED when
// ownership moves to this node or the peers' copies risk idling out.
// Inbound messages are dispatched to one handler per event type.
//
// A starting node runs a state-transfer handshake. It asks the first
// cluster member for all sessions (GET_ALL), queues other replication
// traffic until ALL_DATA_COMPLETE, NO_CONTEXT_MANAGER or the transfer
// timeout, then replays the queue. Queued messages older than the
// transfer epoch are dropped when stale filtering is on, since the bulk
// snapshot already covers them.
//
// Delivery is delegated to a Channel. Replication is best effort: send
// failures are logged and never fail the request that caused them.
package replication
