// Package frame implements the wire format of a rely packet: parsing and
// serialization of the fixed header plus optional payload, and the
// validation that decides whether an inbound datagram is well-formed
// enough to hand to the session state machine. Host/network byte order
// conversion is confined to this package; nothing above it ever sees a
// network-order integer.
package frame

import (
	"encoding/binary"
	"errors"

	"github.com/cs144/rely/checksum"
	"github.com/cs144/rely/seq"
)

const (
	// HeaderLenAck is the length of a pure ack frame: cksum+len+ackno.
	HeaderLenAck = 8
	// HeaderLenData is the length of a data (or EOF) frame header:
	// HeaderLenAck plus the seqno field.
	HeaderLenData = 12
	// MaxPayload is the largest payload a single data frame may carry.
	MaxPayload = 500
	// MaxFrame is the largest legal frame, header included.
	MaxFrame = HeaderLenData + MaxPayload

	offCksum = 0
	offLen   = 2
	offAckno = 4
	offSeqno = 8
)

var (
	// ErrShort is returned when a buffer is too small to hold even a
	// pure-ack header, or when the header's len field is smaller than one.
	ErrShort = errors.New("frame: buffer shorter than ack header")
	// ErrTruncated is returned when the header's len field claims more
	// bytes than the buffer actually holds.
	ErrTruncated = errors.New("frame: len exceeds received bytes")
	// ErrTooLarge is returned when len exceeds MaxFrame.
	ErrTooLarge = errors.New("frame: len exceeds maximum frame size")
	// ErrBadChecksum is returned when the transmitted checksum does not
	// match the checksum computed over the received bytes.
	ErrBadChecksum = errors.New("frame: checksum mismatch")
)

// Frame is a thin, allocation-free view over a frame's raw bytes. The
// bytes are always in the host's accessor semantics: field getters/setters
// perform network byte order conversion internally, so callers never
// touch wire-order integers directly.
type Frame struct {
	buf []byte
}

// View wraps buf as a Frame without validating it. Callers that received
// buf off the wire must call Parse instead, which validates before
// returning a Frame.
func View(buf []byte) Frame {
	return Frame{buf: buf}
}

// RawData returns the frame's backing buffer. For a Frame returned by Parse,
// BuildAck or BuildData it is exactly Len() bytes.
func (f Frame) RawData() []byte { return f.buf }

// Cksum returns the header's checksum field.
func (f Frame) Cksum() uint16 { return binary.BigEndian.Uint16(f.buf[offCksum:]) }

// SetCksum sets the header's checksum field.
func (f Frame) SetCksum(v uint16) { binary.BigEndian.PutUint16(f.buf[offCksum:], v) }

// Len returns the header's total-frame-length field.
func (f Frame) Len() uint16 { return binary.BigEndian.Uint16(f.buf[offLen:]) }

// SetLen sets the header's total-frame-length field.
func (f Frame) SetLen(v uint16) { binary.BigEndian.PutUint16(f.buf[offLen:], v) }

// Ackno returns the cumulative-ack field.
func (f Frame) Ackno() seq.Num {
	return seq.Num(binary.BigEndian.Uint32(f.buf[offAckno:]))
}

// SetAckno sets the cumulative-ack field.
func (f Frame) SetAckno(v seq.Num) {
	binary.BigEndian.PutUint32(f.buf[offAckno:], uint32(v))
}

// IsData reports whether this frame carries a data header (len >= 12),
// as opposed to being a pure ack.
func (f Frame) IsData() bool { return f.Len() >= HeaderLenData }

// Seqno returns the data frame's sequence number. Precondition: IsData().
func (f Frame) Seqno() seq.Num {
	return seq.Num(binary.BigEndian.Uint32(f.buf[offSeqno:]))
}

// SetSeqno sets the data frame's sequence number. Precondition: IsData().
func (f Frame) SetSeqno(v seq.Num) {
	binary.BigEndian.PutUint32(f.buf[offSeqno:], uint32(v))
}

// IsEOF reports whether this is a data frame with a zero-length payload.
func (f Frame) IsEOF() bool { return f.Len() == HeaderLenData }

// Payload returns the frame's payload, empty for a pure ack or an EOF frame.
func (f Frame) Payload() []byte {
	if !f.IsData() {
		return nil
	}
	return f.buf[HeaderLenData:f.Len()]
}

// PayloadLen returns len(f.Payload()) without slicing.
func (f Frame) PayloadLen() int {
	if !f.IsData() {
		return 0
	}
	return int(f.Len()) - HeaderLenData
}

// Checksum computes the frame's checksum as though the cksum field were
// zero, over exactly Len() bytes.
func (f Frame) Checksum() uint16 {
	return checksum.Frame(f.buf[:f.Len()], offCksum)
}

// Finalize stamps the checksum field with Checksum(). Call after all other
// fields and the payload have been written.
func (f Frame) Finalize() {
	f.SetCksum(f.Checksum())
}

// BuildAck writes a pure-ack frame into buf (which must be at least
// HeaderLenAck bytes) and returns the finalized Frame.
func BuildAck(buf []byte, ackno seq.Num) Frame {
	f := Frame{buf: buf[:HeaderLenAck]}
	f.SetLen(HeaderLenAck)
	f.SetAckno(ackno)
	f.Finalize()
	return f
}

// BuildData writes a data (or, if payload is empty, EOF) frame into buf
// and returns the finalized Frame. buf must be at least
// HeaderLenData+len(payload) bytes.
func BuildData(buf []byte, seqno, ackno seq.Num, payload []byte) Frame {
	n := HeaderLenData + len(payload)
	f := Frame{buf: buf[:n]}
	f.SetLen(uint16(n))
	f.SetAckno(ackno)
	f.SetSeqno(seqno)
	copy(f.buf[HeaderLenData:], payload)
	f.Finalize()
	return f
}

// Parse validates buf as a received datagram and returns the Frame view
// over its first Len() bytes. Per the wire-format's error policy, any
// malformed datagram (too short, truncated, oversized, bad checksum)
// yields a non-nil error and the caller must drop the datagram silently.
func Parse(buf []byte) (Frame, error) {
	if len(buf) < HeaderLenAck {
		return Frame{}, ErrShort
	}
	l := binary.BigEndian.Uint16(buf[offLen:])
	if l < HeaderLenAck {
		return Frame{}, ErrShort
	}
	if l > MaxFrame {
		return Frame{}, ErrTooLarge
	}
	if int(l) > len(buf) {
		return Frame{}, ErrTruncated
	}
	f := Frame{buf: buf[:l]}
	want := f.Cksum()
	got := f.Checksum()
	if want != got {
		return Frame{}, ErrBadChecksum
	}
	return f, nil
}
