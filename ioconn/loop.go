package ioconn

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/cs144/rely/registry"
	"github.com/cs144/rely/session"
)

// EventLoop drives a single Session or a Registry of sessions from
// poll(2) readiness on a small, fixed set of file descriptors plus a
// periodic timer tick — the same three event sources
// (input-ready/output-ready/timer) the reference implementation's
// poll.h-based main loop watches, reconstructed here with
// golang.org/x/sys/unix.Poll since no direct Go source for that loop
// existed in the retrieval pack to adapt.
type EventLoop struct {
	inFd, outFd int
	sock        *DatagramSocket
	tick        time.Duration

	// exactly one of these is set: a single client session, or a server
	// registry dispatching across many.
	single *ClientSession
	reg    *registry.Registry
}

// ClientSession bundles the pieces an EventLoop needs to drive one
// client-mode connection: the protocol engine plus its Stdio collaborator,
// so the loop can call Flush() on poll-writable events without reaching
// into Conn.
type ClientSession struct {
	Engine *session.Session
	Stdio  *Stdio
}

// NewClientLoop builds a loop driving a single outbound session against
// sock and the local stdio descriptors.
func NewClientLoop(inFd, outFd int, sock *DatagramSocket, tick time.Duration, sess ClientSession) *EventLoop {
	return &EventLoop{inFd: inFd, outFd: outFd, sock: sock, tick: tick, single: &sess}
}

// NewServerLoop builds a loop demultiplexing inbound datagrams on sock
// across reg's sessions. Server mode has no single stdio pair of its own;
// each admitted session's Dialer supplies its own.
func NewServerLoop(sock *DatagramSocket, tick time.Duration, reg *registry.Registry) *EventLoop {
	return &EventLoop{sock: sock, tick: tick, reg: reg}
}

// Run polls until stop is closed, dispatching readiness to the wired
// session or registry. It never returns an error from a single failed
// poll iteration retry-able with EINTR; any other poll error is fatal and
// returned.
func (l *EventLoop) Run(stop <-chan struct{}) error {
	fds := l.pollFds()
	timeout := int(l.tick / time.Millisecond)
	if timeout <= 0 {
		timeout = 1
	}
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		n, err := unix.Poll(fds, timeout)
		now := time.Now()
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n > 0 {
			l.handleReady(fds, now)
		}
		l.onTick(now)
	}
}

func (l *EventLoop) pollFds() []unix.PollFd {
	fds := []unix.PollFd{{Fd: int32(l.sock.Fd()), Events: unix.POLLIN}}
	if l.single != nil {
		fds = append(fds, unix.PollFd{Fd: int32(l.inFd), Events: unix.POLLIN})
		fds = append(fds, unix.PollFd{Fd: int32(l.outFd), Events: unix.POLLOUT})
	}
	return fds
}

const (
	pollIdxSocket = 0
	pollIdxIn     = 1
	pollIdxOut    = 2
)

func (l *EventLoop) handleReady(fds []unix.PollFd, now time.Time) {
	if fds[pollIdxSocket].Revents&unix.POLLIN != 0 {
		l.drainSocket(now)
	}
	if l.single != nil {
		if fds[pollIdxIn].Revents&unix.POLLIN != 0 {
			l.single.Engine.OnInputReadable(now)
		}
		if fds[pollIdxOut].Revents&unix.POLLOUT != 0 {
			l.single.Stdio.Flush()
			l.single.Engine.OnOutputWritable()
		}
	}
}

func (l *EventLoop) drainSocket(now time.Time) {
	var buf [1500]byte
	for {
		n, peer, ok := l.sock.ReadFrom(buf[:])
		if !ok {
			return
		}
		if l.reg != nil {
			l.reg.Dispatch(peer, buf[:n], now)
		} else if l.single != nil {
			l.single.Engine.OnPacket(buf[:n], now)
		}
	}
}

func (l *EventLoop) onTick(now time.Time) {
	if l.reg != nil {
		l.reg.Tick(now)
		return
	}
	if l.single != nil {
		l.single.Engine.OnTick(now)
	}
}
