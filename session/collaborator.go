package session

// Conn is the connection collaborator a Session is driven against: a local
// input source, a local output sink, and a means of sending datagrams to
// the peer. The event loop, socket, and stdio plumbing that implement Conn
// are external to the core per the design's scope (see SPEC_FULL.md §6);
// Session only ever calls through this interface.
type Conn interface {
	// Input reads up to len(buf) bytes from the local input source into
	// buf. n==0,eof==false means the source would block right now and
	// OnInputReadable should stop until called again. eof==true (always
	// paired with n==0) means the source is exhausted.
	Input(buf []byte) (n int, eof bool)

	// Output writes b to the local output sink and returns the number of
	// bytes actually accepted, which must be <= BufSpace() observed
	// beforehand.
	Output(b []byte) (n int)

	// BufSpace reports the current free capacity of the output sink.
	BufSpace() int

	// SendDatagram best-effort, non-blocking sends frame to the peer.
	SendDatagram(frame []byte)

	// Close releases the connection. Called exactly once, by teardown.
	Close()
}
