package replication

import (
	"sync/atomic"
	"time"
)

// counters is one generation of statistics. Reset swaps in a fresh
// generation so all counters restart together.
type counters struct {
	since              time.Time
	sent               [numEventTypes]atomic.Int64
	received           [numEventTypes]atomic.Int64
	noStateTransferred atomic.Int64
	sessionReplaced    atomic.Int64
}

// Statistics tracks replication traffic per direction and event type.
// All methods are safe for concurrent use.
type Statistics struct {
	enabled atomic.Bool
	cur     atomic.Pointer[counters]
}

func newStatistics(enabled bool) *Statistics {
	s := &Statistics{}
	s.enabled.Store(enabled)
	s.cur.Store(&counters{since: time.Now()})
	return s
}

// Enabled reports whether traffic counters are being collected.
func (s *Statistics) Enabled() bool {
	return s.enabled.Load()
}

// SetEnabled turns traffic counters on or off.
func (s *Statistics) SetEnabled(v bool) {
	s.enabled.Store(v)
}

func (s *Statistics) countSent(t EventType) {
	if s.enabled.Load() && t.Valid() {
		s.cur.Load().sent[t].Add(1)
	}
}

func (s *Statistics) countReceived(t EventType) {
	if s.enabled.Load() && t.Valid() {
		s.cur.Load().received[t].Add(1)
	}
}

func (s *Statistics) countNoStateTransferred() {
	if s.enabled.Load() {
		s.cur.Load().noStateTransferred.Add(1)
	}
}

func (s *Statistics) countSessionReplaced() {
	if s.enabled.Load() {
		s.cur.Load().sessionReplaced.Add(1)
	}
}

// Reset zeroes every counter at once.
func (s *Statistics) Reset() {
	s.cur.Store(&counters{since: time.Now()})
}

// Snapshot returns the current counter values.
func (s *Statistics) Snapshot() StatsSnapshot {
	c := s.cur.Load()
	snap := StatsSnapshot{
		Since:              c.since,
		Enabled:            s.enabled.Load(),
		Sent:               make(map[string]int64, numEventTypes),
		Received:           make(map[string]int64, numEventTypes),
		NoStateTransferred: c.noStateTransferred.Load(),
		SessionReplaced:    c.sessionReplaced.Load(),
	}
	for _, t := range EventTypes() {
		snap.Sent[t.String()] = c.sent[t].Load()
		snap.Received[t.String()] = c.received[t].Load()
	}
	return snap
}

// StatsSnapshot is a point-in-time copy of the replication counters.
type StatsSnapshot struct {
	Since              time.Time        `json:"since"`
	Enabled            bool             `json:"enabled"`
	Sent               map[string]int64 `json:"sent"`
	Received           map[string]int64 `json:"received"`
	NoStateTransferred int64            `json:"no_state_transferred"`
	SessionReplaced    int64            `json:"session_replaced"`
}

// SentCount returns the number of sent messages of type t.
func (s StatsSnapshot) SentCount(t EventType) int64 {
	return s.Sent[t.String()]
}

// ReceivedCount returns the number of received messages of type t.
func (s StatsSnapshot) ReceivedCount(t EventType) int64 {
	return s.Received[t.String()]
}
