package session

// deliver implements §4.2.3: push as much in-order receive-buffer data to
// the output collaborator as it currently has room for, advancing the
// receive head and issuing a cumulative ack for whatever was fully
// consumed. It is called from both OnPacket and OnOutputWritable, since
// either a fresh arrival or newly freed output space can make progress
// possible.
func (s *Session) deliver() {
	for {
		head := s.recvBuf.Head()
		if !s.recvBuf.Occupied(head) {
			return
		}
		re := s.recvBuf.Get(head)
		if re.eof {
			s.recvBuf.AdvanceHead(head.Add(1))
			s.lastAckSent = head.Add(1)
			s.sendAck(s.lastAckSent)
			s.markPeerEOF()
			continue
		}
		avail := s.conn.BufSpace()
		switch {
		case avail > len(re.payload):
			// Full delivery: the whole payload fits, slot can be retired
			// and the cumulative ack advanced past it.
			s.conn.Output(re.payload)
			s.recvBuf.AdvanceHead(head.Add(1))
			s.lastAckSent = head.Add(1)
			s.sendAck(s.lastAckSent)
		case avail > 0:
			// Partial delivery only: per the boundary case where avail
			// equals len(payload) exactly, this branch still applies —
			// the slot is not retired until a later call observes
			// avail > len(payload) with an empty remainder, so the ack
			// for this seqno is deliberately deferred by one event.
			n := s.conn.Output(re.payload[:avail])
			re.payload = re.payload[n:]
			return
		default:
			return // output sink has no room at all right now.
		}
	}
}

// markPeerEOF latches printedEOF the first time the peer's EOF frame (an
// empty payload, re.eof) reaches the front of the receive window, and
// signals the output collaborator with a zero-length Output so it can
// perform its own half of teardown (e.g. closing stdout).
func (s *Session) markPeerEOF() {
	if !s.printedEOF {
		s.printedEOF = true
		s.conn.Output(nil)
	}
}
