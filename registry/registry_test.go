package registry

import (
	"net/netip"
	"testing"
	"time"

	"github.com/cs144/rely/frame"
	"github.com/cs144/rely/session"
)

type nopConn struct{ sent [][]byte }

func (c *nopConn) Input(buf []byte) (int, bool)   { return 0, true }
func (c *nopConn) Output(b []byte) int            { return len(b) }
func (c *nopConn) BufSpace() int                  { return 4096 }
func (c *nopConn) SendDatagram(f []byte)          { c.sent = append(c.sent, append([]byte(nil), f...)) }
func (c *nopConn) Close()                         {}

func TestDispatchAdmitsOnlyOnInitialSeqno(t *testing.T) {
	var built []netip.AddrPort
	r := New(func(peer netip.AddrPort) session.Conn {
		built = append(built, peer)
		return &nopConn{}
	}, session.Config{Window: 4, Timeout: time.Second})

	peer := netip.MustParseAddrPort("192.0.2.1:9000")

	var ackBuf [frame.HeaderLenAck]byte
	nonInitial := frame.BuildAck(ackBuf[:], 1)
	r.Dispatch(peer, nonInitial.RawData(), time.Now())
	if r.Len() != 0 {
		t.Fatalf("a non-initial packet from an unknown peer must not admit a session, Len()=%d", r.Len())
	}

	var dataBuf [frame.HeaderLenData]byte
	initial := frame.BuildData(dataBuf[:], 1, 1, nil)
	r.Dispatch(peer, initial.RawData(), time.Now())
	if r.Len() != 1 {
		t.Fatalf("expected one admitted session, Len()=%d", r.Len())
	}
	if len(built) != 1 || built[0] != peer {
		t.Fatalf("dialer not invoked with expected peer: %v", built)
	}

	// A second initial-looking packet from the same peer reuses the
	// existing session rather than admitting a second one.
	r.Dispatch(peer, initial.RawData(), time.Now())
	if r.Len() != 1 || len(built) != 1 {
		t.Fatalf("existing session should be reused, not re-admitted: Len()=%d dialer calls=%d", r.Len(), len(built))
	}
}

func TestTickDrivesEverySession(t *testing.T) {
	r := New(func(peer netip.AddrPort) session.Conn {
		return &nopConn{}
	}, session.Config{Window: 4, Timeout: time.Nanosecond})

	peer := netip.MustParseAddrPort("192.0.2.2:1")
	var dataBuf [frame.HeaderLenData + 3]byte
	initial := frame.BuildData(dataBuf[:], 1, 1, []byte("hey"))
	r.Dispatch(peer, initial.RawData(), time.Now())

	r.Tick(time.Now().Add(time.Hour)) // well past the 1ns timeout; this session has sent no data, so there is nothing to retransmit
	if r.Len() != 1 {
		t.Fatalf("Tick must not itself destroy or drop sessions, Len()=%d", r.Len())
	}
}
