package frame

import (
	"bytes"
	"testing"

	"github.com/cs144/rely/seq"
)

func TestBuildParseAckRoundTrip(t *testing.T) {
	var buf [HeaderLenAck]byte
	f := BuildAck(buf[:], 42)
	got, err := Parse(f.RawData())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.IsData() {
		t.Error("ack frame parsed as data")
	}
	if got.Ackno() != 42 {
		t.Errorf("Ackno = %d, want 42", got.Ackno())
	}
}

func TestBuildParseDataRoundTrip(t *testing.T) {
	var buf [MaxFrame]byte
	payload := []byte("HELLO")
	f := BuildData(buf[:], 1, 1, payload)
	got, err := Parse(f.RawData())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.IsData() || got.IsEOF() {
		t.Fatal("expected data, non-EOF frame")
	}
	if got.Seqno() != 1 {
		t.Errorf("Seqno = %d, want 1", got.Seqno())
	}
	if !bytes.Equal(got.Payload(), payload) {
		t.Errorf("Payload = %q, want %q", got.Payload(), payload)
	}
}

func TestBuildParseEOF(t *testing.T) {
	var buf [HeaderLenData]byte
	f := BuildData(buf[:], 2, 1, nil)
	got, err := Parse(f.RawData())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.IsEOF() {
		t.Error("expected EOF frame")
	}
	if got.PayloadLen() != 0 {
		t.Errorf("PayloadLen = %d, want 0", got.PayloadLen())
	}
}

func TestParseRejectsShort(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3})
	if err != ErrShort {
		t.Errorf("got %v, want ErrShort", err)
	}
}

func TestParseRejectsTruncated(t *testing.T) {
	var buf [HeaderLenData]byte
	f := BuildData(buf[:], 1, 1, nil)
	_, err := Parse(f.RawData()[:HeaderLenData-1])
	if err != ErrTruncated {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestParseRejectsBadChecksum(t *testing.T) {
	var buf [HeaderLenAck]byte
	f := BuildAck(buf[:], 1)
	f.RawData()[7] ^= 0xff
	_, err := Parse(f.RawData())
	if err != ErrBadChecksum {
		t.Errorf("got %v, want ErrBadChecksum", err)
	}
}

func TestParseRejectsOversize(t *testing.T) {
	var buf [HeaderLenData]byte
	binary := BuildData(buf[:], 1, 1, nil)
	b := binary.RawData()
	b[2], b[3] = 0x02, 0x01 // claim len = 513 > MaxFrame
	_, err := Parse(b)
	if err != ErrTooLarge {
		t.Errorf("got %v, want ErrTooLarge", err)
	}
}

func TestSeqnoRoundTrip(t *testing.T) {
	var buf [MaxFrame]byte
	f := BuildData(buf[:], seq.Num(0xffffffff), 0, []byte("x"))
	if f.Seqno() != seq.Num(0xffffffff) {
		t.Errorf("Seqno = %#x, want 0xffffffff", f.Seqno())
	}
}
