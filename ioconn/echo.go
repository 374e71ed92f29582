package ioconn

import (
	"net/netip"

	"github.com/cs144/rely/internal"
)

// EchoConn is the server's default local-stream collaborator: whatever
// bytes the peer sends are queued and read back out as the session's own
// input, giving relys an echo service with no subprocess or filesystem
// dependency. It is the server-side analogue of a simple loopback test
// fixture, not a teacher-grounded component — see DESIGN.md.
type EchoConn struct {
	ring internal.Ring
	eof  bool
}

// NewEchoConn allocates an EchoConn with the given loopback buffer size.
func NewEchoConn(bufSize int) *EchoConn {
	return &EchoConn{ring: internal.Ring{Buf: make([]byte, bufSize)}}
}

// Output queues delivered peer data (or, for a nil EOF marker, latches eof
// so Input eventually reports the stream exhausted once drained).
func (e *EchoConn) Output(b []byte) int {
	if b == nil {
		e.eof = true
		return 0
	}
	n, _ := e.ring.Write(b)
	return n
}

// BufSpace reports how much more peer data the loopback buffer can hold.
func (e *EchoConn) BufSpace() int { return e.ring.Free() }

// Input echoes back previously queued data; once drained and eof is
// latched, it reports end of stream.
func (e *EchoConn) Input(buf []byte) (int, bool) {
	n, err := e.ring.Read(buf)
	if n > 0 {
		return n, false
	}
	if err != nil && e.eof {
		return 0, true
	}
	return 0, false
}

// PeerEchoConn combines an EchoConn loopback stream with a shared
// DatagramSocket to form a complete session.Conn for one server-side peer,
// the same pairing PeerConn does for Stdio.
type PeerEchoConn struct {
	*EchoConn
	sock *DatagramSocket
	peer netip.AddrPort
}

// NewPeerEchoConn builds a server-side session.Conn for peer.
func NewPeerEchoConn(bufSize int, sock *DatagramSocket, peer netip.AddrPort) *PeerEchoConn {
	return &PeerEchoConn{EchoConn: NewEchoConn(bufSize), sock: sock, peer: peer}
}

// SendDatagram implements session.Conn.
func (c *PeerEchoConn) SendDatagram(frameBytes []byte) { c.sock.SendTo(c.peer, frameBytes) }

// Close implements session.Conn. The loopback buffer needs no teardown.
func (c *PeerEchoConn) Close() {}
