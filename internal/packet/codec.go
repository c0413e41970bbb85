package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Size is the serialized length of a Raw packet.
const Size = 40

// Wire layout (little-endian, no padding):
//
//	0  ph             float64
//	8  ph_timestamp   int64 (unix seconds)
//	16 tds            float64
//	24 tds_timestamp  int64 (unix seconds)
//	32 sent_timestamp int64 (unix seconds)
const (
	offPH           = 0
	offPHTimestamp  = 8
	offTDS          = 16
	offTDSTimestamp = 24
	offSent         = 32
)

// ErrLengthMismatch matches any LengthMismatchError via errors.Is.
var ErrLengthMismatch = errors.New("packet: length mismatch")

// LengthMismatchError reports a buffer that cannot hold exactly one packet.
type LengthMismatchError struct {
	Expected int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("packet: expected %d bytes, got %d", e.Expected, e.Actual)
}

func (e *LengthMismatchError) Unwrap() error { return ErrLengthMismatch }

// Raw is one sensor transmission as it appears on the wire.
type Raw struct {
	PH            float64
	PHTimestamp   int64
	TDS           float64
	TDSTimestamp  int64
	SentTimestamp int64
}

// Decode parses exactly Size bytes into a Raw packet. Any other length is
// rejected before a single field is read.
func Decode(b []byte) (Raw, error) {
	if len(b) != Size {
		return Raw{}, &LengthMismatchError{Expected: Size, Actual: len(b)}
	}

	return Raw{
		PH:            math.Float64frombits(binary.LittleEndian.Uint64(b[offPH:offPHTimestamp])),
		PHTimestamp:   int64(binary.LittleEndian.Uint64(b[offPHTimestamp:offTDS])),
		TDS:           math.Float64frombits(binary.LittleEndian.Uint64(b[offTDS:offTDSTimestamp])),
		TDSTimestamp:  int64(binary.LittleEndian.Uint64(b[offTDSTimestamp:offSent])),
		SentTimestamp: int64(binary.LittleEndian.Uint64(b[offSent:Size])),
	}, nil
}

// Encode serializes r into a fresh Size-byte buffer.
func Encode(r Raw) []byte {
	return AppendEncode(make([]byte, 0, Size), r)
}

// AppendEncode appends the wire form of r to dst.
func AppendEncode(dst []byte, r Raw) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(r.PH))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(r.PHTimestamp))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(r.TDS))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(r.TDSTimestamp))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(r.SentTimestamp))
	return dst
}
