package ioconn

import (
	"net/netip"

	"golang.org/x/sys/unix"
)

// DatagramSocket wraps a non-blocking UDP socket file descriptor shared by
// every session a server hosts (client mode uses it with a single fixed
// peer). It is the concrete Dialer target: the relys registry.Dialer
// closure hands out *PeerEchoConn values that reference one shared
// DatagramSocket plus a per-session peer address.
type DatagramSocket struct {
	fd int
}

// NewDatagramSocket creates, binds, and sets non-blocking a UDP socket on
// local. If local.Port() is 0 the kernel assigns an ephemeral port.
func NewDatagramSocket(local netip.AddrPort) (*DatagramSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, err
	}
	addr := local.Addr().As4()
	sa := &unix.SockaddrInet4{Port: int(local.Port()), Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &DatagramSocket{fd: fd}, nil
}

// Fd returns the underlying file descriptor, for registration with an
// EventLoop's poll set.
func (d *DatagramSocket) Fd() int { return d.fd }

// Close releases the socket.
func (d *DatagramSocket) Close() error { return unix.Close(d.fd) }

// SendTo best-effort writes frame to peer. A transient EAGAIN is treated
// as datagram loss, consistent with the protocol's assumption that any
// frame may be silently dropped in transit and recovered by retransmit.
func (d *DatagramSocket) SendTo(peer netip.AddrPort, frameBytes []byte) {
	sa := &unix.SockaddrInet4{Port: int(peer.Port()), Addr: peer.Addr().As4()}
	_ = unix.Sendto(d.fd, frameBytes, 0, sa)
}

// ReadFrom reads one datagram into buf. ok is false when the read would
// block (no datagram currently pending).
func (d *DatagramSocket) ReadFrom(buf []byte) (n int, peer netip.AddrPort, ok bool) {
	nr, from, err := unix.Recvfrom(d.fd, buf, 0)
	if err != nil {
		return 0, netip.AddrPort{}, false
	}
	sa4, isV4 := from.(*unix.SockaddrInet4)
	if !isV4 {
		return 0, netip.AddrPort{}, false
	}
	addr := netip.AddrFrom4(sa4.Addr)
	return nr, netip.AddrPortFrom(addr, uint16(sa4.Port)), true
}

// PeerConn adapts a Stdio local stream and a shared DatagramSocket into a
// full session.Conn for one peer: Input/Output/BufSpace/Close delegate to
// Stdio, SendDatagram fans out through the socket to this peer's address.
type PeerConn struct {
	*Stdio
	sock *DatagramSocket
	peer netip.AddrPort
}

// NewPeerConn builds a session.Conn for peer, sharing sock across however
// many peers the caller serves.
func NewPeerConn(stdio *Stdio, sock *DatagramSocket, peer netip.AddrPort) *PeerConn {
	return &PeerConn{Stdio: stdio, sock: sock, peer: peer}
}

// SendDatagram implements session.Conn.
func (c *PeerConn) SendDatagram(frameBytes []byte) { c.sock.SendTo(c.peer, frameBytes) }
