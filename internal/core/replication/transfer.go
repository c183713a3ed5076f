package replication

import (
	"sync"
	"sync/atomic"
	"time"
)

// TransferState is the phase of the startup state-transfer handshake.
type TransferState int32

const (
	TransferIdle TransferState = iota
	TransferAwaiting
	TransferComplete
	TransferTimedOut
	TransferNoPeerContext
)

func (s TransferState) String() string {
	switch s {
	case TransferIdle:
		return "idle"
	case TransferAwaiting:
		return "awaiting_transfer"
	case TransferComplete:
		return "complete"
	case TransferTimedOut:
		return "timed_out"
	case TransferNoPeerContext:
		return "no_peer_context"
	default:
		return "unknown"
	}
}

// Terminal reports whether the handshake has finished.
func (s TransferState) Terminal() bool {
	return s >= TransferComplete
}

type queuedMessage struct {
	msg  *Message
	from Member
}

// transfer holds the handshake state shared between the initiator and
// inbound dispatch. The queue and the queuing flag are guarded by mu.
type transfer struct {
	mu      sync.Mutex
	queuing bool
	queue   []queuedMessage

	state       atomic.Int32
	epoch       atomic.Int64
	transferred atomic.Bool
	noContext   atomic.Bool

	done     chan struct{}
	doneOnce *sync.Once
}

func newTransfer() *transfer {
	t := &transfer{}
	t.reset()
	return t
}

func (t *transfer) reset() {
	t.mu.Lock()
	t.queuing = false
	t.queue = nil
	t.done = make(chan struct{})
	t.doneOnce = &sync.Once{}
	t.mu.Unlock()
	t.state.Store(int32(TransferIdle))
	t.epoch.Store(0)
	t.transferred.Store(false)
	t.noContext.Store(false)
}

// begin starts queuing and records the request time as the epoch.
// It must run before GET_ALL goes out so no reply can overtake it.
func (t *transfer) begin(epoch int64) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queuing = true
	t.epoch.Store(epoch)
	t.state.Store(int32(TransferAwaiting))
	return t.done
}

// enqueue holds msg back when a transfer is in progress.
func (t *transfer) enqueue(msg *Message, from Member) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.queuing {
		return false
	}
	t.queue = append(t.queue, queuedMessage{msg: msg, from: from})
	return true
}

// take removes and returns everything queued so far. When nothing is
// left it stops queuing in the same critical section so no message can
// slip in between the last batch and the switch to direct dispatch.
func (t *transfer) take() []queuedMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	batch := t.queue
	t.queue = nil
	if len(batch) == 0 {
		t.queuing = false
	}
	return batch
}

func (t *transfer) queueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// complete records ALL_DATA_COMPLETE. Signals that arrive outside an
// active handshake are ignored and reported as false.
func (t *transfer) complete(epoch int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if TransferState(t.state.Load()) != TransferAwaiting {
		return false
	}
	t.epoch.Store(epoch)
	t.transferred.Store(true)
	t.wakeLocked()
	return true
}

// noPeerContext records NO_CONTEXT_MANAGER under the same rule as complete.
func (t *transfer) noPeerContext() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if TransferState(t.state.Load()) != TransferAwaiting {
		return false
	}
	t.noContext.Store(true)
	t.wakeLocked()
	return true
}

func (t *transfer) wakeLocked() {
	done := t.done
	t.doneOnce.Do(func() { close(done) })
}

// await blocks until a terminal signal arrives or timeout elapses.
// A negative timeout waits indefinitely.
func (t *transfer) await(done <-chan struct{}, timeout time.Duration) TransferState {
	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-done:
	case <-expired:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	state := TransferTimedOut
	switch {
	case t.transferred.Load():
		state = TransferComplete
	case t.noContext.Load():
		state = TransferNoPeerContext
	}
	t.state.Store(int32(state))
	return state
}

// stale reports whether msg predates the transfer epoch. GET_ALL is never
// stale: another node may be joining at the same time.
func (t *transfer) stale(msg *Message) bool {
	return msg.Type() != EventGetAll && msg.Timestamp() < t.epoch.Load()
}
