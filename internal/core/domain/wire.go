package domain

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	errWireType      = errors.New("unexpected wire type")
	errMissingField  = errors.New("missing required field")
	errUnknownAction = errors.New("unknown delta action")
)

// fieldFunc receives one decoded field. For varint fields x holds the
// value; for length-delimited fields v aliases the input buffer.
type fieldFunc func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error

// walkFields iterates the top-level fields of a protobuf wire message.
// Fixed32, fixed64 and group fields are skipped.
func walkFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			x, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
			if err := fn(num, typ, nil, x); err != nil {
				return err
			}
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
			if err := fn(num, typ, v, 0); err != nil {
				return err
			}
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return nil
}

// WalkFields exposes the wire walker to codecs in other packages that
// share the same schema-less layout.
func WalkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	return walkFields(b, fn)
}
