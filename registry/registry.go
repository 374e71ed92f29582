// Package registry implements the Session Registry: the address-keyed
// table of live sessions a server-side event loop demultiplexes inbound
// datagrams against. It is grounded on the teacher's StackBasic handler
// table (internet/basicstack.go), generalized from a slice of
// protocol/port handlers to a map keyed by peer address, with the same
// "remove the handler once its session is done" lifecycle.
package registry

import (
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/cs144/rely/frame"
	"github.com/cs144/rely/internal"
	"github.com/cs144/rely/session"
)

// Dialer constructs the per-session collaborator for a newly admitted
// peer. The relys server's Dialer returns an ioconn.PeerEchoConn that
// shares the server's single DatagramSocket; see the ioconn package.
type Dialer func(peer netip.AddrPort) session.Conn

// Registry demultiplexes inbound datagrams by peer address, admitting a
// new Session only for the first packet of a connection, and evicts
// destroyed sessions as they tear down.
//
// Registry guards its map with a mutex because, unlike an individual
// Session (driven by exactly one event loop goroutine), the registry is
// also read concurrently by the metrics collector's Prometheus scrape
// goroutine.
type Registry struct {
	mu       sync.Mutex
	sessions map[netip.AddrPort]*session.Session
	scratch  []*session.Session
	dial     Dialer
	cfg      session.Config
	log      *slog.Logger
}

// New creates an empty Registry. dial is called exactly once per admitted
// peer to build that session's Conn collaborator; cfg is shared by every
// session the registry creates (cfg.OnDestroy is overridden internally to
// also unlink the session from the registry, after calling any OnDestroy
// the caller supplied).
func New(dial Dialer, cfg session.Config) *Registry {
	return &Registry{
		sessions: make(map[netip.AddrPort]*session.Session),
		dial:     dial,
		cfg:      cfg,
		log:      cfg.Logger,
	}
}

// Dispatch routes a datagram received from peer to its session,
// implementing the demux rule: a packet from an address with no existing
// session is only admitted to start a new one if it is an initial data
// packet (sequence number 1); anything else from an unknown address is
// silently dropped, matching the protocol's assumption of no independent
// handshake.
func (r *Registry) Dispatch(peer netip.AddrPort, raw []byte, now time.Time) {
	r.mu.Lock()
	sess, ok := r.sessions[peer]
	if !ok {
		if !isInitialPacket(raw) {
			r.mu.Unlock()
			internal.LogAttrs(r.log, slog.LevelDebug, "registry: drop non-initial packet from unknown peer",
				peerAttr(peer))
			return
		}
		sess = r.admit(peer)
	}
	r.mu.Unlock()
	sess.OnPacket(raw, now)
}

// admit creates and links a new session for peer. Caller must hold r.mu.
func (r *Registry) admit(peer netip.AddrPort) *session.Session {
	cfg := r.cfg
	userOnDestroy := cfg.OnDestroy
	cfg.OnDestroy = func() {
		if userOnDestroy != nil {
			userOnDestroy()
		}
		r.mu.Lock()
		delete(r.sessions, peer)
		r.mu.Unlock()
	}
	sess, err := session.New(r.dial(peer), cfg)
	if err != nil {
		// New(Registry) does not validate cfg, so an invalid cfg from its
		// caller surfaces here, when the first peer is admitted.
		panic(err)
	}
	r.sessions[peer] = sess
	internal.LogAttrs(r.log, slog.LevelInfo, "registry: admitted new session", peerAttr(peer))
	return sess
}

// peerAttr logs peer's address allocation-free when it is IPv4, matching
// the teacher's SlogAddr4 helper; it falls back to String() for IPv6.
func peerAttr(peer netip.AddrPort) slog.Attr {
	if addr := peer.Addr(); addr.Is4() {
		a := addr.As4()
		return internal.SlogAddr4("peer_addr", &a)
	}
	return slog.String("peer", peer.String())
}

// Tick drives OnTick on every live session. Called once per timer interval
// by the event loop.
func (r *Registry) Tick(now time.Time) {
	for _, sess := range r.snapshot() {
		sess.OnTick(now)
	}
}

// snapshot returns a stable slice of the currently live sessions, so Tick
// (and any other full-table sweep) never iterates the live map while a
// session's teardown callback is concurrently deleting from it. The
// backing array is reused across calls (via internal.SliceReuse) since
// Tick runs once per timer interval for the life of the process.
func (r *Registry) snapshot() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	internal.SliceReuse(&r.scratch, len(r.sessions))
	for _, sess := range r.sessions {
		r.scratch = append(r.scratch, sess)
	}
	return r.scratch
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// SessionStats pairs a peer address with that session's diagnostic
// counters, for the metrics package's Prometheus scrape.
type SessionStats struct {
	Peer  netip.AddrPort
	Stats session.Stats
}

// Snapshot returns a point-in-time SessionStats for every live session.
func (r *Registry) Snapshot() []SessionStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionStats, 0, len(r.sessions))
	for peer, sess := range r.sessions {
		out = append(out, SessionStats{Peer: peer, Stats: sess.Stats()})
	}
	return out
}

// isInitialPacket reports whether raw looks like a data frame carrying
// sequence number 1, the only inbound packet a brand new session may be
// admitted on.
func isInitialPacket(raw []byte) bool {
	f, err := frame.Parse(raw)
	if err != nil {
		return false
	}
	return f.IsData() && f.Seqno() == 1
}
