package domain

import (
	"slices"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

type deltaKind uint8

const (
	deltaAttribute deltaKind = iota + 1
	deltaMaxInactive
)

type deltaOp uint8

const (
	opSet deltaOp = iota + 1
	opRemove
)

type deltaAction struct {
	kind        deltaKind
	op          deltaOp
	name        string
	value       []byte
	maxInactive time.Duration
}

// DeltaRequest records the changes made to a session since it was last
// replicated. Only the latest action per target is kept.
//
// DeltaRequest is not safe for concurrent use; Session guards it.
type DeltaRequest struct {
	sessionID string
	actions   []deltaAction
}

// NewDeltaRequest creates an empty delta for the given session.
func NewDeltaRequest(sessionID string) *DeltaRequest {
	return &DeltaRequest{sessionID: sessionID}
}

// SessionID returns the ID of the session the delta belongs to.
func (d *DeltaRequest) SessionID() string {
	return d.sessionID
}

// Size returns the number of recorded actions.
func (d *DeltaRequest) Size() int {
	return len(d.actions)
}

// Reset drops all recorded actions.
func (d *DeltaRequest) Reset() {
	d.actions = d.actions[:0]
}

func (d *DeltaRequest) setSessionID(id string) {
	d.sessionID = id
}

func (d *DeltaRequest) setAttribute(name string, value []byte) {
	d.add(deltaAction{kind: deltaAttribute, op: opSet, name: name, value: value})
}

func (d *DeltaRequest) removeAttribute(name string) {
	d.add(deltaAction{kind: deltaAttribute, op: opRemove, name: name})
}

func (d *DeltaRequest) setMaxInactive(v time.Duration) {
	d.add(deltaAction{kind: deltaMaxInactive, op: opSet, maxInactive: v})
}

func (d *DeltaRequest) add(a deltaAction) {
	d.actions = slices.DeleteFunc(d.actions, func(x deltaAction) bool {
		return x.kind == a.kind && x.name == a.name
	})
	d.actions = append(d.actions, a)
}

// Wire layout (protobuf wire format, no schema):
//
//	1: session id (bytes)
//	2: action (bytes, repeated)
//	   1: kind (varint)  2: op (varint)  3: name (bytes)
//	   4: value (bytes)  5: max inactive ms (zigzag varint)
const (
	fieldDeltaSessionID protowire.Number = 1
	fieldDeltaAction    protowire.Number = 2

	fieldActionKind        protowire.Number = 1
	fieldActionOp          protowire.Number = 2
	fieldActionName        protowire.Number = 3
	fieldActionValue       protowire.Number = 4
	fieldActionMaxInactive protowire.Number = 5
)

// Marshal encodes the delta.
func (d *DeltaRequest) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldDeltaSessionID, protowire.BytesType)
	b = protowire.AppendString(b, d.sessionID)
	for _, a := range d.actions {
		if a.kind != deltaAttribute && a.kind != deltaMaxInactive {
			return nil, ErrDiffEncode.WithDetails("unknown action kind")
		}
		var m []byte
		m = protowire.AppendTag(m, fieldActionKind, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(a.kind))
		m = protowire.AppendTag(m, fieldActionOp, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(a.op))
		if a.name != "" {
			m = protowire.AppendTag(m, fieldActionName, protowire.BytesType)
			m = protowire.AppendString(m, a.name)
		}
		if a.value != nil {
			m = protowire.AppendTag(m, fieldActionValue, protowire.BytesType)
			m = protowire.AppendBytes(m, a.value)
		}
		if a.kind == deltaMaxInactive {
			m = protowire.AppendTag(m, fieldActionMaxInactive, protowire.VarintType)
			m = protowire.AppendVarint(m, protowire.EncodeZigZag(a.maxInactive.Milliseconds()))
		}
		b = protowire.AppendTag(b, fieldDeltaAction, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b, nil
}

// UnmarshalDeltaRequest decodes a delta produced by Marshal.
func UnmarshalDeltaRequest(b []byte) (*DeltaRequest, error) {
	d := &DeltaRequest{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldDeltaSessionID:
			if typ != protowire.BytesType {
				return errWireType
			}
			d.sessionID = string(v)
		case fieldDeltaAction:
			if typ != protowire.BytesType {
				return errWireType
			}
			a, err := unmarshalAction(v)
			if err != nil {
				return err
			}
			d.actions = append(d.actions, a)
		}
		return nil
	})
	if err != nil {
		return nil, ErrDiffFormat.WithCause(err)
	}
	return d, nil
}

func unmarshalAction(b []byte) (deltaAction, error) {
	var a deltaAction
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldActionKind:
			a.kind = deltaKind(x)
		case fieldActionOp:
			a.op = deltaOp(x)
		case fieldActionName:
			a.name = string(v)
		case fieldActionValue:
			a.value = slices.Clone(v)
			if a.value == nil {
				a.value = []byte{}
			}
		case fieldActionMaxInactive:
			a.maxInactive = time.Duration(protowire.DecodeZigZag(x)) * time.Millisecond
		}
		return nil
	})
	if err != nil {
		return a, err
	}
	switch {
	case a.kind == deltaAttribute && a.name == "":
		return a, errMissingField
	case a.kind != deltaAttribute && a.kind != deltaMaxInactive:
		return a, errUnknownAction
	case a.op != opSet && a.op != opRemove:
		return a, errUnknownAction
	}
	return a, nil
}
