package domain

import (
	"crypto/rand"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// SessionIDPrefix is the prefix for generated session IDs.
	SessionIDPrefix = "dmss-"

	// MaxSessionIDLength bounds externally supplied session IDs.
	MaxSessionIDLength = 128

	// MaxAttributeNameLength bounds attribute names.
	MaxAttributeNameLength = 256
)

// Session is a replicated session.
//
// A session is owned by at most one node at a time: the node that last
// served a request for it holds it as primary. Every other node keeps a
// mirrored copy that is updated from replication messages.
//
// All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id      string
	valid   bool
	primary bool
	isNew   bool

	// Timestamps are Unix milliseconds.
	creationTime       int64
	lastAccessedTime   int64
	thisAccessedTime   int64
	lastReplicatedTime int64

	// maxInactive < 0 means the session never expires by idleness.
	maxInactive time.Duration
	accessCount int

	attributes map[string][]byte
	delta      *DeltaRequest
}

// NewSession creates an empty, not yet valid session with the given ID.
// The creation, access and replication timestamps are set to now.
func NewSession(id string) *Session {
	now := time.Now().UnixMilli()
	return &Session{
		id:                 id,
		isNew:              true,
		creationTime:       now,
		lastAccessedTime:   now,
		thisAccessedTime:   now,
		lastReplicatedTime: now,
		maxInactive:        -1,
		attributes:         make(map[string][]byte),
		delta:              NewDeltaRequest(id),
	}
}

// GenerateSessionID generates a new session ID using ULID.
// Format: dmss-{ulid_lowercase}, 31 characters total.
func GenerateSessionID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return SessionIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidSessionID reports whether id can be used as a session ID.
// Externally supplied IDs are accepted as long as they are printable
// and bounded; only generated IDs carry the dmss- prefix.
func IsValidSessionID(id string) bool {
	if id == "" || len(id) > MaxSessionIDLength {
		return false
	}
	for _, r := range id {
		if r <= ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

// ID returns the session ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetID changes the session ID. The pending delta follows the session.
func (s *Session) SetID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.delta.setSessionID(id)
}

// IsValid reports whether the session is usable.
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// SetValid marks the session usable or not.
func (s *Session) SetValid(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = v
}

// IsPrimary reports whether this node holds the session as primary.
func (s *Session) IsPrimary() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

// SetPrimary sets the primary flag.
func (s *Session) SetPrimary(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = v
}

// IsNew reports whether no request has completed against the session yet.
func (s *Session) IsNew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNew
}

// CreationTime returns the creation time in Unix milliseconds.
func (s *Session) CreationTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creationTime
}

// SetCreationTime sets the creation time and resets both access
// timestamps to it.
func (s *Session) SetCreationTime(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creationTime = ms
	s.lastAccessedTime = ms
	s.thisAccessedTime = ms
}

// LastAccessedTime returns the end time of the previous request.
func (s *Session) LastAccessedTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessedTime
}

// ThisAccessedTime returns the start time of the current or last request.
func (s *Session) ThisAccessedTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thisAccessedTime
}

// LastReplicatedTime returns when a replication message was last produced
// for this session. It starts at the creation time.
func (s *Session) LastReplicatedTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReplicatedTime
}

// SetLastReplicatedTime records the timestamp of the last produced message.
func (s *Session) SetLastReplicatedTime(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReplicatedTime = ms
}

// MaxInactive returns the idle timeout. Negative means no timeout.
func (s *Session) MaxInactive() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInactive
}

// SetMaxInactive sets the idle timeout and records it in the delta.
func (s *Session) SetMaxInactive(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxInactive = d
	s.delta.setMaxInactive(d)
}

// SetMaxInactiveLocal sets the idle timeout without recording a delta.
// Used when mirroring state received from a peer.
func (s *Session) SetMaxInactiveLocal(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxInactive = d
}

// Access marks the start of a request against the session.
func (s *Session) Access() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thisAccessedTime = time.Now().UnixMilli()
	s.accessCount++
}

// EndAccess marks the end of a request against the session.
func (s *Session) EndAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isNew = false
	s.lastAccessedTime = s.thisAccessedTime
	s.thisAccessedTime = time.Now().UnixMilli()
	if s.accessCount > 0 {
		s.accessCount--
	}
}

// IdleTime returns how long the session has been idle at now.
func (s *Session) IdleTime(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(now.UnixMilli()-s.thisAccessedTime) * time.Millisecond
}

// IsExpired reports whether the session has been idle longer than its
// max inactive interval at now. Sessions with a request in flight do not
// expire. Mirrored (non-primary) copies are kept for twice the interval
// so the owner's expiry announcement normally arrives first.
func (s *Session) IsExpired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxInactive < 0 || s.accessCount > 0 {
		return false
	}
	limit := s.maxInactive
	if !s.primary {
		limit *= 2
	}
	idle := time.Duration(now.UnixMilli()-s.thisAccessedTime) * time.Millisecond
	return idle >= limit
}

// Attribute returns a copy of the named attribute value.
func (s *Session) Attribute(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attributes[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// AttributeNames returns the attribute names in sorted order.
func (s *Session) AttributeNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.attributes))
}

// Attributes returns a deep copy of all attributes.
func (s *Session) Attributes() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = slices.Clone(v)
	}
	return out
}

// SetAttribute stores an attribute and records the change in the delta.
func (s *Session) SetAttribute(name string, value []byte) error {
	if name == "" || len(name) > MaxAttributeNameLength {
		return ErrInvalidArgument.WithDetails("attribute name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := slices.Clone(value)
	s.attributes[name] = v
	s.delta.setAttribute(name, v)
	return nil
}

// RemoveAttribute deletes an attribute and records the removal in the
// delta. Removing a missing attribute is a no-op.
func (s *Session) RemoveAttribute(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attributes[name]; !ok {
		return
	}
	delete(s.attributes, name)
	s.delta.removeAttribute(name)
}

// IsDirty reports whether the session has unreplicated changes.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delta.Size() > 0
}

// Diff serializes the pending changes.
func (s *Session) Diff() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delta.Marshal()
}

// TakeDiff serializes the pending changes and clears them under one lock,
// so a change made concurrently is either in the diff or still pending.
// It returns nil when there is nothing to send. On error the pending
// changes are kept.
func (s *Session) TakeDiff() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delta.Size() == 0 {
		return nil, nil
	}
	b, err := s.delta.Marshal()
	if err != nil {
		return nil, err
	}
	s.delta.Reset()
	return b, nil
}

// ApplyDiff decodes a diff produced by a peer and applies it without
// recording new changes. A corrupt diff leaves the session untouched.
func (s *Session) ApplyDiff(b []byte) error {
	req, err := UnmarshalDeltaRequest(b)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range req.actions {
		switch a.kind {
		case deltaAttribute:
			if a.op == opSet {
				s.attributes[a.name] = a.value
			} else {
				delete(s.attributes, a.name)
			}
		case deltaMaxInactive:
			s.maxInactive = a.maxInactive
		}
	}
	return nil
}

// ResetDelta discards the pending changes.
func (s *Session) ResetDelta() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delta.Reset()
}

// Expire invalidates the session and clears its attributes. It returns
// false when the session was already invalid.
func (s *Session) Expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return false
	}
	s.valid = false
	clear(s.attributes)
	s.delta.Reset()
	return true
}

// Snapshot is a point-in-time read-only view of a session.
type Snapshot struct {
	ID                 string            `json:"id"`
	Valid              bool              `json:"valid"`
	Primary            bool              `json:"primary"`
	New                bool              `json:"new"`
	CreationTime       int64             `json:"creation_time"`
	LastAccessedTime   int64             `json:"last_accessed_time"`
	LastReplicatedTime int64             `json:"last_replicated_time"`
	MaxInactiveSeconds int64             `json:"max_inactive_seconds"`
	Attributes         map[string]string `json:"attributes"`
}

// Snapshot returns a view of the session suitable for encoding.
// Attribute values are rendered as strings.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := make(map[string]string, len(s.attributes))
	for k, v := range s.attributes {
		attrs[k] = string(v)
	}
	maxInactive := int64(-1)
	if s.maxInactive >= 0 {
		maxInactive = int64(s.maxInactive / time.Second)
	}
	return Snapshot{
		ID:                 s.id,
		Valid:              s.valid,
		Primary:            s.primary,
		New:                s.isNew,
		CreationTime:       s.creationTime,
		LastAccessedTime:   s.lastAccessedTime,
		LastReplicatedTime: s.lastReplicatedTime,
		MaxInactiveSeconds: maxInactive,
		Attributes:         attrs,
	}
}
