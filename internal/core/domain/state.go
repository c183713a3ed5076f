package domain

import (
	"maps"
	"slices"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Session state layout:
//
//	1: id  2: creation  3: last accessed  4: this accessed (varint ms)
//	5: max inactive ms (zigzag)  6: is new (varint)
//	7: attribute (bytes, repeated) { 1: name  2: value }
//
// Valid and primary are not part of the state; the receiver decides them.
const (
	fieldStateID               protowire.Number = 1
	fieldStateCreationTime     protowire.Number = 2
	fieldStateLastAccessedTime protowire.Number = 3
	fieldStateThisAccessedTime protowire.Number = 4
	fieldStateMaxInactive      protowire.Number = 5
	fieldStateIsNew            protowire.Number = 6
	fieldStateAttribute        protowire.Number = 7

	fieldAttrName  protowire.Number = 1
	fieldAttrValue protowire.Number = 2
)

// MarshalState encodes the full session state for bulk transfer.
func (s *Session) MarshalState() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b []byte
	b = protowire.AppendTag(b, fieldStateID, protowire.BytesType)
	b = protowire.AppendString(b, s.id)
	b = protowire.AppendTag(b, fieldStateCreationTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.creationTime))
	b = protowire.AppendTag(b, fieldStateLastAccessedTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.lastAccessedTime))
	b = protowire.AppendTag(b, fieldStateThisAccessedTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.thisAccessedTime))
	b = protowire.AppendTag(b, fieldStateMaxInactive, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(s.maxInactive.Milliseconds()))
	b = protowire.AppendTag(b, fieldStateIsNew, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(s.isNew))

	for _, name := range slices.Sorted(maps.Keys(s.attributes)) {
		var a []byte
		a = protowire.AppendTag(a, fieldAttrName, protowire.BytesType)
		a = protowire.AppendString(a, name)
		a = protowire.AppendTag(a, fieldAttrValue, protowire.BytesType)
		a = protowire.AppendBytes(a, s.attributes[name])
		b = protowire.AppendTag(b, fieldStateAttribute, protowire.BytesType)
		b = protowire.AppendBytes(b, a)
	}
	return b
}

// UnmarshalSessionState decodes a state produced by MarshalState into a
// new, not yet valid session with an empty delta.
func UnmarshalSessionState(b []byte) (*Session, error) {
	s := &Session{
		lastReplicatedTime: time.Now().UnixMilli(),
		maxInactive:        -1,
		attributes:         make(map[string][]byte),
	}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldStateID:
			s.id = string(v)
		case fieldStateCreationTime:
			s.creationTime = int64(x)
		case fieldStateLastAccessedTime:
			s.lastAccessedTime = int64(x)
		case fieldStateThisAccessedTime:
			s.thisAccessedTime = int64(x)
		case fieldStateMaxInactive:
			s.maxInactive = time.Duration(protowire.DecodeZigZag(x)) * time.Millisecond
		case fieldStateIsNew:
			s.isNew = protowire.DecodeBool(x)
		case fieldStateAttribute:
			if typ != protowire.BytesType {
				return errWireType
			}
			return s.unmarshalAttribute(v)
		}
		return nil
	})
	if err != nil {
		return nil, ErrStateFormat.WithCause(err)
	}
	if s.id == "" {
		return nil, ErrStateFormat.WithCause(errMissingField).WithDetails("id")
	}
	s.delta = NewDeltaRequest(s.id)
	return s, nil
}

func (s *Session) unmarshalAttribute(b []byte) error {
	var (
		name  string
		value []byte
	)
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldAttrName:
			name = string(v)
		case fieldAttrValue:
			value = slices.Clone(v)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if name == "" {
		return errMissingField
	}
	if value == nil {
		value = []byte{}
	}
	s.attributes[name] = value
	return nil
}
