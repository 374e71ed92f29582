// Package session implements the Session State Machine: the per-connection
// reliable-transport engine that owns a send and a receive Windowed
// Sequence Buffer and drives them through four synchronous, non-blocking
// event entry points. It is grounded on the reference rel_t engine
// (rel_create/rel_recvpkt/rel_read/rel_output/rel_timer) and structured the
// way the teacher splits a protocol engine (Handler) from its collaborator
// wiring (Conn): Session below IS the engine; Conn is supplied by the
// caller.
package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cs144/rely/frame"
	"github.com/cs144/rely/internal"
	"github.com/cs144/rely/seq"
	"github.com/cs144/rely/wsb"
)

// Config configures a Session.
type Config struct {
	// Window is the number of outstanding (unacked) data frames the send
	// side may have in flight, and the exact capacity of the receive
	// side. Must be positive.
	Window int
	// Timeout is the retransmission timeout.
	Timeout time.Duration
	// Logger receives structured diagnostics for dropped frames and
	// teardown. Nil disables logging.
	Logger *slog.Logger
	// OnDestroy, if set, is invoked exactly once when the session tears
	// down, after conn.Close(). Registries use this to unlink themselves.
	OnDestroy func()
}

var errInvalidConfig = errors.New("session: window and timeout must be positive")

// Session is the per-connection protocol engine. It is not safe for
// concurrent use: per the design's concurrency model, exactly one event
// loop drives all four entry points serially, never overlapping calls to
// the same Session.
type Session struct {
	logger
	conn    Conn
	window  int
	timeout time.Duration

	sendBuf *wsb.Buffer[sendElement]
	recvBuf *wsb.Buffer[recvElement]

	nextSeqno   seq.Num
	lastAckSent seq.Num

	readEOF        bool
	sentEOF        bool
	printedEOF     bool
	receivedEOFAck bool
	hasEOFSeqno    bool
	eofSeqno       seq.Num

	nagleHeld bool
	nagleSeq  seq.Num

	destroyed bool
	onDestroy func()

	stats Stats
}

// New creates a Session bound to conn. Sequence numbering begins at 1, per
// the protocol's assumption that the first data packet carries seqno 1 (no
// three-way handshake).
func New(conn Conn, cfg Config) (*Session, error) {
	if cfg.Window <= 0 || cfg.Timeout <= 0 {
		return nil, errInvalidConfig
	}
	s := &Session{
		logger:    logger{log: cfg.Logger},
		conn:      conn,
		window:    cfg.Window,
		timeout:   cfg.Timeout,
		onDestroy: cfg.OnDestroy,
	}
	s.sendBuf = wsb.New[sendElement](cfg.Window)
	s.recvBuf = wsb.New[recvElement](cfg.Window)
	err := s.sendBuf.AdvanceHead(1)
	internal.DebugAssert(err == nil, "session: send buffer head must advance from 0 to 1")
	err = s.recvBuf.AdvanceHead(1)
	internal.DebugAssert(err == nil, "session: receive buffer head must advance from 0 to 1")
	s.nextSeqno = 1
	s.lastAckSent = 1
	return s, nil
}

// Stats returns a snapshot of the session's diagnostic counters.
func (s *Session) Stats() Stats { return s.stats }

// Destroyed reports whether the session has completed teardown. Callers
// (the event loop, the registry) must stop delivering events to a
// destroyed session.
func (s *Session) Destroyed() bool { return s.destroyed }

// OnPacket handles a single received datagram: validation, cumulative-ack
// processing, data reassembly, delivery, and teardown check, in that order.
func (s *Session) OnPacket(raw []byte, now time.Time) {
	if s.destroyed {
		return
	}
	f, err := frame.Parse(raw)
	if err != nil {
		s.stats.DroppedMalformed++
		s.debug("drop malformed frame", slog.String("err", err.Error()), slog.Int("n", len(raw)))
		return
	}
	s.handleAck(f.Ackno(), now)
	if s.destroyed {
		return
	}
	if f.IsData() {
		s.handleData(f)
	}
	s.deliver()
	s.checkTeardown()
}

// handleAck implements §4.2.1 step 1: cumulative-ack processing, Nagle
// latch clearing, received_eof_ack latching, and releasing frames the ack
// brought into the window.
func (s *Session) handleAck(ackno seq.Num, now time.Time) {
	if s.nextSeqno.LessThan(ackno) {
		s.stats.DroppedProtocolViolation++
		s.debug("drop ack beyond next_seqno", slog.Uint64("ackno", uint64(ackno)), slog.Uint64("next_seqno", uint64(s.nextSeqno)))
		return
	}
	head := s.sendBuf.Head()
	if !head.LessThan(ackno) {
		return // ackno <= head: duplicate ack, idempotent no-op.
	}
	if s.nagleHeld && s.nagleSeq.LessThan(ackno) {
		s.nagleHeld = false
	}
	s.stats.Acked += uint64(ackno.Sub(head))
	advErr := s.sendBuf.AdvanceHead(ackno)
	internal.DebugAssert(advErr == nil, "session: send buffer head must advance past an already-validated ackno")
	if s.sentEOF && s.hasEOFSeqno && s.eofSeqno.LessThan(ackno) {
		s.receivedEOFAck = true
	}
	limit := s.sendBuf.Head().Add(uint32(s.window))
	for seqno := s.sendBuf.Head(); seqno.LessThan(limit); seqno = seqno.Add(1) {
		if s.sendBuf.Occupied(seqno) {
			if se := s.sendBuf.Get(seqno); !se.sent {
				s.trySend(seqno, now)
			}
		}
	}
}

// handleData implements §4.2.1 step 2: reassembly of an inbound data/EOF
// frame, with duplicate-ack recovery for out-of-window or duplicate data.
func (s *Session) handleData(f frame.Frame) {
	seqno := f.Seqno()
	if s.recvBuf.Contains(seqno) && !s.recvBuf.Occupied(seqno) {
		payload := append([]byte(nil), f.Payload()...)
		s.recvBuf.Insert(seqno, recvElement{payload: payload, eof: len(payload) == 0})
		return
	}
	s.stats.DroppedDuplicateOrOOW++
	s.trace("drop duplicate or out-of-window data", slog.Uint64("seqno", uint64(seqno)))
	s.sendAck(s.lastAckSent)
}

// OnInputReadable implements §4.2.2: read from the local input source
// while the send window has room, framing and buffering each chunk (and
// transmitting it immediately unless Nagle suppresses it), until the
// source would block or signals EOF.
func (s *Session) OnInputReadable(now time.Time) {
	if s.destroyed || s.readEOF {
		return
	}
	for {
		limit := s.sendBuf.Head().Add(uint32(s.window))
		if !s.nextSeqno.LessThan(limit) {
			return
		}
		var buf [frame.MaxPayload]byte
		n, eof := s.conn.Input(buf[:])
		if n == 0 && !eof {
			return // would block
		}
		seqno := s.nextSeqno
		if eof {
			s.eofSeqno = seqno
			s.hasEOFSeqno = true
		}
		payload := append([]byte(nil), buf[:n]...)
		pktBuf := make([]byte, frame.HeaderLenData+len(payload))
		built := frame.BuildData(pktBuf, seqno, s.lastAckSent, payload)
		s.sendBuf.Insert(seqno, sendElement{buf: built.RawData()})
		s.trySend(seqno, now)
		s.nextSeqno = s.nextSeqno.Add(1)
		if eof {
			s.readEOF = true
			s.checkTeardown()
			return
		}
	}
}

// OnOutputWritable implements §4.2.3: attempt delivery of as much
// in-order receive-buffer data as the output collaborator currently has
// room for.
func (s *Session) OnOutputWritable() {
	if s.destroyed {
		return
	}
	s.deliver()
	s.checkTeardown()
}

// OnTick implements §4.2.4: scan the send window for frames due for
// retransmission. now must be a monotonic clock reading — wall-clock time
// must never be used here (see design notes).
func (s *Session) OnTick(now time.Time) {
	if s.destroyed {
		return
	}
	limit := s.sendBuf.Head().Add(uint32(s.window))
	for seqno := s.sendBuf.Head(); seqno.LessThan(limit); seqno = seqno.Add(1) {
		if !s.sendBuf.Occupied(seqno) {
			continue
		}
		se := s.sendBuf.Get(seqno)
		if !se.sent || now.Sub(se.sentAt) >= s.timeout {
			s.trySend(seqno, now)
		}
	}
}

// trySend is the sole chokepoint through which Session ever hands a
// buffered data frame to the datagram collaborator: it applies the Nagle
// gate (§4.2.5), marks the slot sent, and latches sent_eof the moment the
// local EOF frame is actually transmitted.
func (s *Session) trySend(seqno seq.Num, now time.Time) {
	if !s.sendBuf.Occupied(seqno) {
		return
	}
	se := s.sendBuf.Get(seqno)
	full := len(se.buf) == frame.MaxFrame
	retransmit := se.sent
	if !full && !retransmit {
		if s.nagleHeld && s.nagleSeq != seqno {
			return // suppressed: another small frame already outstanding.
		}
		s.nagleHeld = true
		s.nagleSeq = seqno
	}
	s.conn.SendDatagram(se.buf)
	if se.sent {
		s.stats.Retransmitted++
	} else {
		s.stats.Sent++
	}
	se.sent = true
	se.sentAt = now
	if s.hasEOFSeqno && seqno == s.eofSeqno {
		s.sentEOF = true
	}
}

// sendAck transmits a pure cumulative ack for ackno. It does not update
// lastAckSent; callers that advance the ack set it themselves first.
func (s *Session) sendAck(ackno seq.Num) {
	var buf [frame.HeaderLenAck]byte
	f := frame.BuildAck(buf[:], ackno)
	s.conn.SendDatagram(f.RawData())
}
