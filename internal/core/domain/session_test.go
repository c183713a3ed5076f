package domain

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewSession(t *testing.T) {
	s := NewSession("s1")

	if s.ID() != "s1" {
		t.Errorf("ID() = %q, want %q", s.ID(), "s1")
	}
	if s.IsValid() {
		t.Error("new session should not be valid until registered")
	}
	if s.IsPrimary() {
		t.Error("new session should not be primary")
	}
	if !s.IsNew() {
		t.Error("new session should report IsNew")
	}
	if s.MaxInactive() >= 0 {
		t.Errorf("MaxInactive() = %v, want negative", s.MaxInactive())
	}
	if s.CreationTime() == 0 || s.CreationTime() != s.LastAccessedTime() {
		t.Error("creation and last accessed time should be initialized together")
	}
	if s.IsDirty() {
		t.Error("new session should not be dirty")
	}
}

func TestGenerateSessionID(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := GenerateSessionID()
		if err != nil {
			t.Fatalf("GenerateSessionID() error = %v", err)
		}
		if !strings.HasPrefix(id, SessionIDPrefix) {
			t.Fatalf("ID %q missing prefix", id)
		}
		if len(id) != 31 {
			t.Fatalf("ID length = %d, want 31", len(id))
		}
		if ids[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}

func TestIsValidSessionID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"dmss-01arz3ndektsv4rrffq69g5fav", true},
		{"ABC123", true},
		{"", false},
		{"has space", false},
		{"tab\tid", false},
		{strings.Repeat("a", MaxSessionIDLength), true},
		{strings.Repeat("a", MaxSessionIDLength+1), false},
	}
	for _, tt := range tests {
		if got := IsValidSessionID(tt.id); got != tt.want {
			t.Errorf("IsValidSessionID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestSession_Attributes(t *testing.T) {
	s := NewSession("s1")

	if err := s.SetAttribute("user", []byte("alice")); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}
	if err := s.SetAttribute("", []byte("x")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetAttribute(empty) error = %v, want ErrInvalidArgument", err)
	}

	v, ok := s.Attribute("user")
	if !ok || string(v) != "alice" {
		t.Fatalf("Attribute(user) = %q, %v", v, ok)
	}

	// Returned slices must not alias internal state.
	v[0] = 'X'
	v2, _ := s.Attribute("user")
	if string(v2) != "alice" {
		t.Errorf("Attribute() aliases internal storage: %q", v2)
	}

	s.RemoveAttribute("user")
	if _, ok := s.Attribute("user"); ok {
		t.Error("attribute should be removed")
	}
}

func TestSession_DeltaRoundTrip(t *testing.T) {
	src := NewSession("s1")
	src.SetValid(true)
	_ = src.SetAttribute("a", []byte("1"))
	_ = src.SetAttribute("b", []byte("2"))
	_ = src.SetAttribute("a", []byte("3"))
	src.RemoveAttribute("b")
	src.SetMaxInactive(30 * time.Minute)

	if !src.IsDirty() {
		t.Fatal("session should be dirty after mutations")
	}

	diff, err := src.Diff()
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	dst := NewSession("s1")
	_ = dst.SetAttribute("b", []byte("stale"))
	dst.ResetDelta()

	if err := dst.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff() error = %v", err)
	}

	if v, _ := dst.Attribute("a"); string(v) != "3" {
		t.Errorf("a = %q, want 3", v)
	}
	if _, ok := dst.Attribute("b"); ok {
		t.Error("b should have been removed by the diff")
	}
	if dst.MaxInactive() != 30*time.Minute {
		t.Errorf("MaxInactive() = %v, want 30m", dst.MaxInactive())
	}
	if dst.IsDirty() {
		t.Error("applying a diff must not record new changes")
	}

	src.ResetDelta()
	if src.IsDirty() {
		t.Error("ResetDelta should clear pending changes")
	}
}

func TestSession_TakeDiff(t *testing.T) {
	src := NewSession("s1")
	if diff, err := src.TakeDiff(); err != nil || diff != nil {
		t.Fatalf("TakeDiff() on clean session = %v, %v; want nil, nil", diff, err)
	}

	_ = src.SetAttribute("a", []byte("1"))
	diff, err := src.TakeDiff()
	if err != nil || diff == nil {
		t.Fatalf("TakeDiff() = %v, %v", diff, err)
	}
	if src.IsDirty() {
		t.Error("TakeDiff should clear pending changes")
	}

	dst := NewSession("s1")
	if err := dst.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff() error = %v", err)
	}
	if v, _ := dst.Attribute("a"); string(v) != "1" {
		t.Errorf("a = %q, want 1", v)
	}
}

// Every change made while diffs are being taken must reach the replica.
func TestSession_TakeDiffConcurrentWrites(t *testing.T) {
	const writes = 500
	src := NewSession("s1")
	dst := NewSession("s1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			_ = src.SetAttribute("k"+strconv.Itoa(i), []byte("v"))
		}
	}()

	apply := func() {
		diff, err := src.TakeDiff()
		if err != nil {
			t.Fatalf("TakeDiff() error = %v", err)
		}
		if diff == nil {
			return
		}
		if err := dst.ApplyDiff(diff); err != nil {
			t.Fatalf("ApplyDiff() error = %v", err)
		}
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			apply()
		}
	}
	apply()

	if got := len(dst.Attributes()); got != writes {
		t.Errorf("replica has %d attributes, want %d", got, writes)
	}
}

func TestDeltaRequest_CollapsesActions(t *testing.T) {
	s := NewSession("s1")
	_ = s.SetAttribute("a", []byte("1"))
	_ = s.SetAttribute("a", []byte("2"))
	s.RemoveAttribute("a")

	diff, err := s.Diff()
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	req, err := UnmarshalDeltaRequest(diff)
	if err != nil {
		t.Fatalf("UnmarshalDeltaRequest() error = %v", err)
	}
	if req.Size() != 1 {
		t.Errorf("Size() = %d, want 1", req.Size())
	}
	if req.SessionID() != "s1" {
		t.Errorf("SessionID() = %q, want s1", req.SessionID())
	}
}

func TestSession_ApplyDiffCorrupt(t *testing.T) {
	s := NewSession("s1")
	_ = s.SetAttribute("keep", []byte("v"))
	s.ResetDelta()

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated varint", []byte{0x08, 0xff}},
		{"truncated bytes", []byte{0x12, 0x10, 0x01}},
		{"invalid tag", []byte{0x00}},
		{"unknown action kind", []byte{0x12, 0x04, 0x08, 0x09, 0x10, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ApplyDiff(tt.data)
			if !errors.Is(err, ErrDiffFormat) {
				t.Fatalf("ApplyDiff() error = %v, want ErrDiffFormat", err)
			}
			if v, ok := s.Attribute("keep"); !ok || string(v) != "v" {
				t.Error("corrupt diff must leave the session untouched")
			}
		})
	}
}

func TestSession_SetIDMovesDelta(t *testing.T) {
	s := NewSession("old")
	_ = s.SetAttribute("a", []byte("1"))
	s.SetID("new")

	diff, err := s.Diff()
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	req, err := UnmarshalDeltaRequest(diff)
	if err != nil {
		t.Fatalf("UnmarshalDeltaRequest() error = %v", err)
	}
	if req.SessionID() != "new" {
		t.Errorf("delta session id = %q, want new", req.SessionID())
	}
}

func TestSession_StateRoundTrip(t *testing.T) {
	src := NewSession("s1")
	src.SetValid(true)
	src.SetPrimary(true)
	src.SetCreationTime(1_000)
	src.SetMaxInactive(90 * time.Second)
	_ = src.SetAttribute("cart", []byte{0x00, 0x01, 0x02})
	_ = src.SetAttribute("empty", []byte{})

	got, err := UnmarshalSessionState(src.MarshalState())
	if err != nil {
		t.Fatalf("UnmarshalSessionState() error = %v", err)
	}
	if got.ID() != "s1" {
		t.Errorf("ID() = %q", got.ID())
	}
	if got.CreationTime() != 1_000 {
		t.Errorf("CreationTime() = %d, want 1000", got.CreationTime())
	}
	if got.MaxInactive() != 90*time.Second {
		t.Errorf("MaxInactive() = %v", got.MaxInactive())
	}
	if v, _ := got.Attribute("cart"); !bytes.Equal(v, []byte{0x00, 0x01, 0x02}) {
		t.Errorf("cart = %v", v)
	}
	if v, ok := got.Attribute("empty"); !ok || len(v) != 0 {
		t.Errorf("empty = %v, %v", v, ok)
	}
	if got.IsValid() || got.IsPrimary() {
		t.Error("decoded state must not carry valid or primary flags")
	}
	if got.IsDirty() {
		t.Error("decoded state must have an empty delta")
	}
}

func TestUnmarshalSessionState_Errors(t *testing.T) {
	if _, err := UnmarshalSessionState(nil); !errors.Is(err, ErrStateFormat) {
		t.Errorf("empty state error = %v, want ErrStateFormat", err)
	}
	if _, err := UnmarshalSessionState([]byte{0x0a, 0x05, 'a'}); !errors.Is(err, ErrStateFormat) {
		t.Errorf("truncated state error = %v, want ErrStateFormat", err)
	}
}

func TestSession_Expiry(t *testing.T) {
	s := NewSession("s1")
	s.SetCreationTime(time.Now().Add(-time.Hour).UnixMilli())

	if s.IsExpired(time.Now()) {
		t.Error("session without max inactive should never expire")
	}

	s.SetMaxInactive(time.Minute)
	if !s.IsExpired(time.Now()) {
		t.Error("session idle for an hour should expire with 1m timeout")
	}

	s.SetMaxInactive(40 * time.Minute)
	if s.IsExpired(time.Now()) {
		t.Error("mirrored session should get twice the interval")
	}
	s.SetPrimary(true)
	if !s.IsExpired(time.Now()) {
		t.Error("primary session idle past the interval should expire")
	}

	s.Access()
	if s.IsExpired(time.Now().Add(time.Hour)) {
		t.Error("session with a request in flight should not expire")
	}
	s.EndAccess()
	if s.IsNew() {
		t.Error("EndAccess should clear the new flag")
	}
}

func TestSession_Expire(t *testing.T) {
	s := NewSession("s1")
	if s.Expire() {
		t.Error("Expire on an invalid session should report false")
	}
	s.SetValid(true)
	_ = s.SetAttribute("a", []byte("1"))
	if !s.Expire() {
		t.Error("Expire on a valid session should report true")
	}
	if s.IsValid() || len(s.AttributeNames()) != 0 || s.IsDirty() {
		t.Error("expired session should be invalid, empty and clean")
	}
}
