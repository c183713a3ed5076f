package replication

import (
	"bytes"
	"errors"
	"testing"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

func TestMessage_MarshalRoundTrip(t *testing.T) {
	sender := Member{ID: "node-a", Addr: "10.0.0.1:7100"}
	msg := NewMessage("shop", EventSessionDelta, "s1", []byte{0x01, 0x02}, 1_700_000_000_000).WithSender(sender)

	b, err := msg.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	got, err := UnmarshalMessage(b)
	if err != nil {
		t.Fatalf("UnmarshalMessage() error = %v", err)
	}

	if got.Type() != EventSessionDelta || got.ContextName() != "shop" || got.SessionID() != "s1" {
		t.Errorf("header = %v/%s/%s", got.Type(), got.ContextName(), got.SessionID())
	}
	if !bytes.Equal(got.Payload(), msg.Payload()) {
		t.Errorf("Payload() = %v", got.Payload())
	}
	if got.Timestamp() != msg.Timestamp() {
		t.Errorf("Timestamp() = %d, want %d", got.Timestamp(), msg.Timestamp())
	}
	if got.UniqueID() != msg.UniqueID() || got.UniqueID() == "" {
		t.Errorf("UniqueID() = %q, want %q", got.UniqueID(), msg.UniqueID())
	}
	if got.Sender() != sender {
		t.Errorf("Sender() = %v, want %v", got.Sender(), sender)
	}
}

func TestMessage_SignalHasNilPayload(t *testing.T) {
	msg := NewMessage("shop", EventGetAll, SessionIDGetAll, nil, 1)
	b, _ := msg.MarshalBinary()
	got, err := UnmarshalMessage(b)
	if err != nil {
		t.Fatalf("UnmarshalMessage() error = %v", err)
	}
	if got.Payload() != nil {
		t.Errorf("Payload() = %v, want nil", got.Payload())
	}
	if !got.Sender().IsZero() {
		t.Errorf("Sender() = %v, want zero", got.Sender())
	}
}

func TestMessage_WithSenderCopies(t *testing.T) {
	msg := NewMessage("shop", EventSessionAccessed, "s1", nil, 1)
	_ = msg.WithSender(Member{ID: "b"})
	if !msg.Sender().IsZero() {
		t.Error("WithSender must not modify the original message")
	}
}

func TestUnmarshalMessage_Errors(t *testing.T) {
	bad, err := NewMessage("shop", EventType(42), "s1", nil, 1).MarshalBinary()
	if !errors.Is(err, domain.ErrMessageFormat) || bad != nil {
		t.Errorf("MarshalBinary(unknown type) = %v, %v", bad, err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown type", []byte{0x08, 0x2a}},
		{"truncated", []byte{0x08, 0x01, 0x12, 0x05, 's'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalMessage(tt.data); !errors.Is(err, domain.ErrMessageFormat) {
				t.Errorf("UnmarshalMessage() error = %v, want ErrMessageFormat", err)
			}
		})
	}
}

func TestEventType_Names(t *testing.T) {
	for _, et := range EventTypes() {
		got, err := ParseEventType(et.String())
		if err != nil || got != et {
			t.Errorf("ParseEventType(%q) = %v, %v", et.String(), got, err)
		}
	}
	if _, err := ParseEventType("SESSION_TOUCHED"); err == nil {
		t.Error("ParseEventType should reject unknown names")
	}
	if EventType(99).Valid() {
		t.Error("EventType(99) should not be valid")
	}
}

func TestEventType_Queued(t *testing.T) {
	queued := map[EventType]bool{
		EventGetAll:           true,
		EventAllData:          true,
		EventAllDataComplete:  false,
		EventSessionCreated:   true,
		EventSessionExpired:   true,
		EventSessionAccessed:  true,
		EventSessionDelta:     true,
		EventChangeSessionID:  true,
		EventNoContextManager: false,
	}
	for et, want := range queued {
		if got := et.queuedDuringTransfer(); got != want {
			t.Errorf("%s.queuedDuringTransfer() = %v, want %v", et, got, want)
		}
	}
}
