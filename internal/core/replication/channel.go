package replication

import (
	"context"
	"time"
)

// SendMode selects the delivery guarantee for a point-to-point send.
type SendMode int

const (
	// SendAsync queues the message for at-least-once background delivery.
	SendAsync SendMode = iota
	// SendSyncAck blocks until the receiver acknowledged the message.
	SendSyncAck
)

func (m SendMode) String() string {
	switch m {
	case SendAsync:
		return "async"
	case SendSyncAck:
		return "sync"
	default:
		return "unknown"
	}
}

// SendOptions tunes a point-to-point send.
type SendOptions struct {
	Mode SendMode
	// Timeout bounds a SendSyncAck call; zero uses the channel default.
	Timeout time.Duration
}

// Channel delivers replication messages between cluster members.
type Channel interface {
	// Send broadcasts msg to every member asynchronously.
	Send(ctx context.Context, msg *Message) error
	// SendTo delivers msg to one member.
	SendTo(ctx context.Context, msg *Message, to Member, opts SendOptions) error
	// Members returns the current peers, excluding the local node, in a
	// stable order.
	Members() []Member
}

// Receiver consumes inbound replication messages. The channel calls it
// once per delivered message, possibly from several goroutines.
type Receiver interface {
	MessageReceived(msg *Message, sender Member)
}
