// Package checksum implements the Internet checksum (RFC 1071): the
// 16-bit one's-complement sum of a frame's 16-bit words, used to detect
// corrupted packet frames.
package checksum

import "encoding/binary"

// CRC791 accumulates a running one's-complement sum, as defined by RFC 791
// and reused by RFC 1071. The zero value is ready to use.
type CRC791 struct {
	sum uint32
}

func fold(sum uint32) uint16 {
	sum = (sum & 0xffff) + sum>>16
	// the max value of sum at this point is 0x1fffe, so an additional round is enough
	return ^uint16(sum + sum>>16)
}

func writeEven(sum uint32, buf []byte) uint32 {
	for i := 0; i < len(buf); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(buf[i:]))
	}
	return sum
}

// Write adds the bytes in buf to the running checksum. len(buf) must be even.
func (c *CRC791) Write(buf []byte) {
	c.sum = writeEven(c.sum, buf)
}

// AddUint16 adds a single big-endian 16-bit value to the running checksum.
func (c *CRC791) AddUint16(v uint16) {
	c.sum += uint32(v)
}

// Sum16 returns the checksum of all data written to c so far.
func (c *CRC791) Sum16() uint16 {
	return fold(c.sum)
}

// Reset zeros the running sum.
func (c *CRC791) Reset() { *c = CRC791{} }

// Frame computes the Internet checksum of a whole frame as though its
// 16-bit cksum field (at byte offset cksumOff) were zero. This is the
// checksum algorithm specified for packet frames: sum the entire frame
// with the cksum field treated as zero, fold, and complement.
func Frame(buf []byte, cksumOff int) uint16 {
	var c CRC791
	odd := len(buf) & 1
	even := buf[:len(buf)-odd]
	for i := 0; i < len(even); i += 2 {
		if i == cksumOff {
			continue // treated as zero
		}
		c.AddUint16(binary.BigEndian.Uint16(even[i:]))
	}
	if odd > 0 {
		c.AddUint16(uint16(buf[len(buf)-1]) << 8)
	}
	return c.Sum16()
}
