// Package wire serializes indexed compressed frames into transport records:
// a 32-bit big-endian index followed by the opaque payload. The transport
// delimits records; there is no length field or checksum.
package wire

import (
	"encoding/binary"
	"errors"

	"soundrelay/relay/pipeline"
)

// IndexSize is the length of the index prefix in bytes.
const IndexSize = 4

// ErrShortRecord is returned for records shorter than the index prefix.
var ErrShortRecord = errors.New("wire: record shorter than index prefix")

// Marshal serializes a frame into a fresh wire record.
func Marshal(f pipeline.Frame) []byte {
	rec := make([]byte, IndexSize+len(f.Data))
	binary.BigEndian.PutUint32(rec, f.Index)
	copy(rec[IndexSize:], f.Data)
	return rec
}

// MarshalTo serializes a frame into dst, reusing its capacity.
func MarshalTo(dst []byte, f pipeline.Frame) []byte {
	need := IndexSize + len(f.Data)
	if cap(dst) < need {
		dst = make([]byte, need)
	} else {
		dst = dst[:need]
	}
	binary.BigEndian.PutUint32(dst, f.Index)
	copy(dst[IndexSize:], f.Data)
	return dst
}

// Unmarshal parses a wire record. The payload is copied: receive buffers
// are reused, so the frame must not alias them.
func Unmarshal(rec []byte) (pipeline.Frame, error) {
	if len(rec) < IndexSize {
		return pipeline.Frame{}, ErrShortRecord
	}
	payload := make([]byte, len(rec)-IndexSize)
	copy(payload, rec[IndexSize:])
	return pipeline.Frame{
		Index: binary.BigEndian.Uint32(rec),
		Data:  payload,
	}, nil
}
