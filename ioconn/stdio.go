// Package ioconn provides the session.Conn collaborator implementations
// that bind a Session to real operating-system I/O: a local byte stream
// (stdin/stdout) and a UDP datagram socket, multiplexed by a poll-based
// event loop. None of this has a direct teacher file to adapt — the
// teacher's datagram plumbing lived in link-layer/tap code this project
// drops (see DESIGN.md) — so it is built from golang.org/x/sys/unix
// primitives the way the original C driver used poll(2) and non-blocking
// read/write against STDIN_FILENO/STDOUT_FILENO.
package ioconn

import (
	"golang.org/x/sys/unix"

	"github.com/cs144/rely/internal"
)

// Stdio implements the local-stream half of session.Conn: Input reads
// directly off a non-blocking file descriptor, and Output buffers into a
// ring so a full stdout pipe never blocks the event loop, draining
// opportunistically on every Output/Flush call and whenever the fd next
// reports writable.
type Stdio struct {
	in, out int
	outRing internal.Ring
}

// NewStdio wraps the given input/output file descriptors, which must
// already be in non-blocking mode (see SetNonblocking). outBufSize bounds
// how much unflushed output Stdio may hold before BufSpace reports zero.
func NewStdio(in, out, outBufSize int) *Stdio {
	return &Stdio{in: in, out: out, outRing: internal.Ring{Buf: make([]byte, outBufSize)}}
}

// SetNonblocking puts fd into non-blocking mode, required before handing
// it to NewStdio or DatagramSocket.
func SetNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// Input implements session.Conn.
func (s *Stdio) Input(buf []byte) (int, bool) {
	n, err := unix.Read(s.in, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, false
		}
		return 0, true
	}
	if n == 0 {
		return 0, true
	}
	return n, false
}

// Output implements session.Conn. A nil b is the session package's EOF
// marker; Stdio treats it as a no-op flush since stdout has no explicit
// close-on-EOF action of its own.
func (s *Stdio) Output(b []byte) int {
	if b == nil {
		s.Flush()
		return 0
	}
	n, _ := s.outRing.Write(b)
	s.Flush()
	return n
}

// BufSpace implements session.Conn.
func (s *Stdio) BufSpace() int { return s.outRing.Free() }

// Flush writes as much buffered output as the fd currently accepts
// without blocking. Call it again after a poll-writable event on out.
func (s *Stdio) Flush() {
	var buf [4096]byte
	for {
		n, err := s.outRing.ReadPeek(buf[:])
		if n == 0 || err != nil {
			return
		}
		written, werr := unix.Write(s.out, buf[:n])
		if written > 0 {
			s.outRing.ReadDiscard(written)
		}
		if werr != nil || written < n {
			return
		}
	}
}

// Close is a no-op: Stdio does not own the underlying fds' lifetime, the
// event loop that created them does.
func (s *Stdio) Close() {}
