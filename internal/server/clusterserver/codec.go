package clusterserver

import (
	"fmt"

	"github.com/yndnr/deltamesh-go/internal/core/replication"
)

// DeliverProcedure is the Connect procedure that carries replication
// messages between nodes.
const DeliverProcedure = "/deltamesh.cluster.v1.ReplicationService/Deliver"

// deliverAck acknowledges a delivered message. It has no fields.
type deliverAck struct{}

// wireCodec frames replication messages with their own binary encoding
// so Connect can carry them without generated types.
type wireCodec struct{}

func (wireCodec) Name() string { return "deltamesh" }

func (wireCodec) Marshal(v any) ([]byte, error) {
	switch v := v.(type) {
	case *replication.Message:
		return v.MarshalBinary()
	case *deliverAck:
		return []byte{}, nil
	default:
		return nil, fmt.Errorf("wire codec: cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	switch v := v.(type) {
	case *replication.Message:
		msg, err := replication.UnmarshalMessage(data)
		if err != nil {
			return err
		}
		*v = *msg
		return nil
	case *deliverAck:
		return nil
	default:
		return fmt.Errorf("wire codec: cannot unmarshal into %T", v)
	}
}
