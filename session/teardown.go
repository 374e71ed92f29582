package session

// checkTeardown implements the four-latch symmetric half-close rule: a
// session is destroyed only once all four of read_eof, sent_eof,
// received_eof_ack, and printed_eof have been observed, regardless of the
// order in which the two directions finish.
func (s *Session) checkTeardown() {
	if s.destroyed {
		return
	}
	if s.readEOF && s.sentEOF && s.receivedEOFAck && s.printedEOF {
		s.destroy()
	}
}

// destroy runs exactly once: it releases the connection collaborator and
// notifies an owning registry, if any.
func (s *Session) destroy() {
	s.destroyed = true
	s.conn.Close()
	if s.onDestroy != nil {
		s.onDestroy()
	}
}
