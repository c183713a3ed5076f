package replication

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

// Member identifies a cluster node.
type Member struct {
	// ID is the node ID, unique within the cluster.
	ID string `json:"id"`
	// Addr is where the node accepts replication traffic.
	Addr string `json:"addr"`
}

// IsZero reports whether m is the zero Member.
func (m Member) IsZero() bool {
	return m.ID == "" && m.Addr == ""
}

func (m Member) String() string {
	if m.Addr == "" {
		return m.ID
	}
	return m.ID + "@" + m.Addr
}

// Message is one replication event. Messages are immutable once built;
// Payload must not be modified by callers.
type Message struct {
	eventType   EventType
	contextName string
	sessionID   string
	payload     []byte
	timestamp   int64
	uniqueID    string
	sender      Member
}

// NewMessage builds a message for the named application context.
// timestamp is Unix milliseconds and is never changed afterwards.
func NewMessage(contextName string, t EventType, sessionID string, payload []byte, timestamp int64) *Message {
	return &Message{
		eventType:   t,
		contextName: contextName,
		sessionID:   sessionID,
		payload:     payload,
		timestamp:   timestamp,
		uniqueID:    uuid.NewString(),
	}
}

// Type returns the event type.
func (m *Message) Type() EventType { return m.eventType }

// ContextName returns the application context the message belongs to.
func (m *Message) ContextName() string { return m.contextName }

// SessionID returns the target session ID or a sentinel.
func (m *Message) SessionID() string { return m.sessionID }

// Payload returns the opaque payload; nil for pure signals.
func (m *Message) Payload() []byte { return m.payload }

// Timestamp returns the sender-assigned time in Unix milliseconds.
func (m *Message) Timestamp() int64 { return m.timestamp }

// UniqueID returns the message ID.
func (m *Message) UniqueID() string { return m.uniqueID }

// Sender returns the originating member; zero before the message is sent.
func (m *Message) Sender() Member { return m.sender }

// WithSender returns a copy of m attributed to sender.
func (m *Message) WithSender(sender Member) *Message {
	c := *m
	c.sender = sender
	return &c
}

func (m *Message) String() string {
	return fmt.Sprintf("%s[%s]@%d", m.eventType, m.sessionID, m.timestamp)
}

// Wire layout:
//
//	1: event type (varint)  2: context (bytes)  3: session id (bytes)
//	4: payload (bytes, absent for signals)  5: timestamp (varint)
//	6: unique id (bytes)  7: sender { 1: id  2: addr }
const (
	fieldMsgType      protowire.Number = 1
	fieldMsgContext   protowire.Number = 2
	fieldMsgSessionID protowire.Number = 3
	fieldMsgPayload   protowire.Number = 4
	fieldMsgTimestamp protowire.Number = 5
	fieldMsgUniqueID  protowire.Number = 6
	fieldMsgSender    protowire.Number = 7

	fieldMemberID   protowire.Number = 1
	fieldMemberAddr protowire.Number = 2
)

// MarshalBinary encodes the message.
func (m *Message) MarshalBinary() ([]byte, error) {
	if !m.eventType.Valid() {
		return nil, domain.ErrMessageFormat.WithDetails(m.eventType.String())
	}
	b := make([]byte, 0, 64+len(m.payload))
	b = protowire.AppendTag(b, fieldMsgType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.eventType))
	b = protowire.AppendTag(b, fieldMsgContext, protowire.BytesType)
	b = protowire.AppendString(b, m.contextName)
	b = protowire.AppendTag(b, fieldMsgSessionID, protowire.BytesType)
	b = protowire.AppendString(b, m.sessionID)
	if m.payload != nil {
		b = protowire.AppendTag(b, fieldMsgPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, m.payload)
	}
	b = protowire.AppendTag(b, fieldMsgTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.timestamp))
	b = protowire.AppendTag(b, fieldMsgUniqueID, protowire.BytesType)
	b = protowire.AppendString(b, m.uniqueID)
	if !m.sender.IsZero() {
		var s []byte
		s = protowire.AppendTag(s, fieldMemberID, protowire.BytesType)
		s = protowire.AppendString(s, m.sender.ID)
		s = protowire.AppendTag(s, fieldMemberAddr, protowire.BytesType)
		s = protowire.AppendString(s, m.sender.Addr)
		b = protowire.AppendTag(b, fieldMsgSender, protowire.BytesType)
		b = protowire.AppendBytes(b, s)
	}
	return b, nil
}

// UnmarshalMessage decodes a message produced by MarshalBinary.
func UnmarshalMessage(b []byte) (*Message, error) {
	m := &Message{}
	seenType := false
	err := domain.WalkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldMsgType:
			m.eventType = EventType(x)
			seenType = true
		case fieldMsgContext:
			m.contextName = string(v)
		case fieldMsgSessionID:
			m.sessionID = string(v)
		case fieldMsgPayload:
			m.payload = slices.Clone(v)
			if m.payload == nil {
				m.payload = []byte{}
			}
		case fieldMsgTimestamp:
			m.timestamp = int64(x)
		case fieldMsgUniqueID:
			m.uniqueID = string(v)
		case fieldMsgSender:
			return domain.WalkFields(v, func(num protowire.Number, _ protowire.Type, v []byte, _ uint64) error {
				switch num {
				case fieldMemberID:
					m.sender.ID = string(v)
				case fieldMemberAddr:
					m.sender.Addr = string(v)
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, domain.ErrMessageFormat.WithCause(err)
	}
	if !seenType || !m.eventType.Valid() {
		return nil, domain.ErrMessageFormat.WithDetails("event type")
	}
	return m, nil
}
