// Package seq implements wraparound-safe arithmetic over the 32-bit
// sequence numbers used to index packet frames.
package seq

// Num is a 32-bit sequence number. The zero value is not a valid sequence
// number for a frame (sessions begin numbering data at 1). Callers that
// need a "no sequence number" state track it with an explicit flag (e.g.
// the session's Nagle tracking) rather than with the zero value.
type Num uint32

// LessThan reports whether n precedes m under unsigned modular comparison,
// tolerant of wraparound: n < m iff 0 < m-n < 2^31. Session lifetimes never
// approach a full wrap (see spec), so this is mostly a defensive comparison,
// but using it consistently instead of a plain `<` keeps every comparison
// site correct if that assumption is ever violated.
func (n Num) LessThan(m Num) bool {
	return int32(m-n) > 0
}

// LessEqual reports whether n precedes or equals m.
func (n Num) LessEqual(m Num) bool {
	return n == m || n.LessThan(m)
}

// InRange reports whether n lies in [lo, lo+width), a sliding window of the
// given width starting at lo.
func (n Num) InRange(lo Num, width uint32) bool {
	return uint32(n-lo) < width
}

// Add returns n+d.
func (n Num) Add(d uint32) Num {
	return n + Num(d)
}

// Sub returns the modular distance n-m as a signed value: positive when m
// precedes n (as interpreted by LessThan).
func (n Num) Sub(m Num) int32 {
	return int32(n - m)
}
