package replication

import (
	"errors"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

// Bulk snapshot compression codecs.
const (
	CompressionNone = "none"
	CompressionS2   = "s2"
	CompressionZstd = "zstd"
)

func validCompression(name string) bool {
	switch name {
	case CompressionNone, CompressionS2, CompressionZstd:
		return true
	}
	return false
}

// Snapshot layout: version byte, codec byte, then the (possibly
// compressed) body: varint session count followed by that many
// length-prefixed session states.
const (
	snapshotVersion byte = 1

	codecNone byte = 0
	codecZstd byte = 1
	codecS2   byte = 2

	// maxSnapshotBody bounds the decompressed body.
	maxSnapshotBody = 256 << 20
)

var (
	errSnapshotHeader  = errors.New("short or unknown snapshot header")
	errSnapshotCount   = errors.New("session count does not match body")
	errSnapshotTrailer = errors.New("trailing bytes after last session")
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("failed to create zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxSnapshotBody),
	)
	if err != nil {
		panic("failed to create zstd decoder: " + err.Error())
	}
}

// SnapshotCodec encodes session sets for bulk transfer.
type SnapshotCodec struct {
	// Compression is one of the Compression* constants; empty means none.
	Compression string
	// Threshold is the minimum body size that gets compressed.
	Threshold int
}

// Encode serializes sessions.
func (c SnapshotCodec) Encode(sessions []*domain.Session) []byte {
	var body []byte
	body = protowire.AppendVarint(body, uint64(len(sessions)))
	for _, s := range sessions {
		body = protowire.AppendBytes(body, s.MarshalState())
	}

	codec := codecNone
	if c.Threshold > 0 && len(body) >= c.Threshold {
		switch c.Compression {
		case CompressionZstd:
			codec = codecZstd
		case CompressionS2:
			codec = codecS2
		}
	}

	out := make([]byte, 2, 2+len(body))
	out[0], out[1] = snapshotVersion, codec
	switch codec {
	case codecZstd:
		return zstdEncoder.EncodeAll(body, out)
	case codecS2:
		return append(out, s2.Encode(nil, body)...)
	default:
		return append(out, body...)
	}
}

// Decode parses a snapshot produced by Encode. It either returns every
// session or an error; partial results are never returned.
func (c SnapshotCodec) Decode(b []byte) ([]*domain.Session, error) {
	if len(b) < 2 || b[0] != snapshotVersion {
		return nil, domain.ErrSnapshotFormat.WithCause(errSnapshotHeader)
	}
	body, err := decompressBody(b[1], b[2:])
	if err != nil {
		return nil, domain.ErrSnapshotFormat.WithCause(err)
	}

	count, n := protowire.ConsumeVarint(body)
	if n < 0 {
		return nil, domain.ErrSnapshotFormat.WithCause(protowire.ParseError(n))
	}
	body = body[n:]
	// Each entry needs at least one length byte.
	if count > uint64(len(body)) {
		return nil, domain.ErrSnapshotFormat.WithCause(errSnapshotCount)
	}

	sessions := make([]*domain.Session, 0, count)
	for i := uint64(0); i < count; i++ {
		state, m := protowire.ConsumeBytes(body)
		if m < 0 {
			return nil, domain.ErrSnapshotFormat.WithCause(protowire.ParseError(m))
		}
		body = body[m:]
		s, err := domain.UnmarshalSessionState(state)
		if err != nil {
			return nil, domain.ErrSnapshotFormat.WithCause(err)
		}
		sessions = append(sessions, s)
	}
	if len(body) != 0 {
		return nil, domain.ErrSnapshotFormat.WithCause(errSnapshotTrailer)
	}
	return sessions, nil
}

func decompressBody(codec byte, data []byte) ([]byte, error) {
	switch codec {
	case codecNone:
		return data, nil
	case codecZstd:
		return zstdDecoder.DecodeAll(data, nil)
	case codecS2:
		n, err := s2.DecodedLen(data)
		if err != nil {
			return nil, err
		}
		if n > maxSnapshotBody {
			return nil, errSnapshotHeader
		}
		return s2.Decode(nil, data)
	default:
		return nil, errSnapshotHeader
	}
}
