package replication

import "fmt"

// EventType identifies the kind of a replication message.
type EventType uint8

const (
	EventGetAll EventType = iota
	EventAllData
	EventAllDataComplete
	EventSessionCreated
	EventSessionExpired
	EventSessionAccessed
	EventSessionDelta
	EventChangeSessionID
	EventNoContextManager

	numEventTypes
)

var eventNames = [numEventTypes]string{
	EventGetAll:           "GET_ALL",
	EventAllData:          "ALL_DATA",
	EventAllDataComplete:  "ALL_DATA_COMPLETE",
	EventSessionCreated:   "SESSION_CREATED",
	EventSessionExpired:   "SESSION_EXPIRED",
	EventSessionAccessed:  "SESSION_ACCESSED",
	EventSessionDelta:     "SESSION_DELTA",
	EventChangeSessionID:  "CHANGE_SESSION_ID",
	EventNoContextManager: "NO_CONTEXT_MANAGER",
}

// EventTypes returns every event type in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, numEventTypes)
	for i := range out {
		out[i] = EventType(i)
	}
	return out
}

// ParseEventType returns the event type with the given name.
func ParseEventType(name string) (EventType, error) {
	for i, n := range eventNames {
		if n == name {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", name)
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t < numEventTypes
}

func (t EventType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("EventType(%d)", uint8(t))
	}
	return eventNames[t]
}

// queuedDuringTransfer reports whether messages of this type are held
// back while a state transfer is in progress. Only the handshake's own
// terminal signals bypass the queue.
func (t EventType) queuedDuringTransfer() bool {
	switch t {
	case EventAllDataComplete, EventNoContextManager:
		return false
	default:
		return t.Valid()
	}
}

// Sentinel session IDs for messages that do not target one session.
const (
	SessionIDGetAll           = "GET-ALL"
	SessionIDState            = "SESSION-STATE"
	SessionIDStateTransferred = "SESSION-STATE-TRANSFERRED"
	SessionIDNoContextManager = "NO-CONTEXT-MANAGER"
)
