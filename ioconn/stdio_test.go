package ioconn

import (
	"os"
	"testing"
)

func TestStdioInputReadsAvailableBytes(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()
	if err := SetNonblocking(int(r.Fd())); err != nil {
		t.Fatalf("SetNonblocking: %v", err)
	}

	s := NewStdio(int(r.Fd()), int(w.Fd()), 4096)

	var buf [16]byte
	if n, eof := s.Input(buf[:]); n != 0 || eof {
		t.Fatalf("Input on empty nonblocking pipe: n=%d eof=%v, want 0,false", n, eof)
	}

	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, eof := s.Input(buf[:])
	if eof || string(buf[:n]) != "hello" {
		t.Fatalf("Input = %q, eof=%v, want hello,false", buf[:n], eof)
	}
}

func TestStdioInputReportsEOFOnClosedWriter(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	if err := SetNonblocking(int(r.Fd())); err != nil {
		t.Fatalf("SetNonblocking: %v", err)
	}
	w.Close()

	s := NewStdio(int(r.Fd()), -1, 4096)
	var buf [16]byte
	n, eof := s.Input(buf[:])
	if n != 0 || !eof {
		t.Fatalf("Input after writer closed: n=%d eof=%v, want 0,true", n, eof)
	}
}

func TestStdioOutputBuffersAndFlushes(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()
	if err := SetNonblocking(int(w.Fd())); err != nil {
		t.Fatalf("SetNonblocking: %v", err)
	}

	s := NewStdio(-1, int(w.Fd()), 4096)
	before := s.BufSpace()
	n := s.Output([]byte("payload"))
	if n != len("payload") {
		t.Fatalf("Output returned %d, want %d", n, len("payload"))
	}
	if s.BufSpace() != before {
		t.Fatalf("BufSpace = %d after a flush that fully drained, want back to %d", s.BufSpace(), before)
	}

	var got [16]byte
	nr, err := r.Read(got[:])
	if err != nil || string(got[:nr]) != "payload" {
		t.Fatalf("reader got %q, err=%v, want payload", got[:nr], err)
	}
}
