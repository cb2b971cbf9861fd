package checksum

import "hash/crc64"

// crc64ECMATable is the reflected CRC-64/XZ table, polynomial
// 0xC96C5795D7870F42, matching the stdlib's crc64.ECMA constant.
var crc64ECMATable = crc64.MakeTable(crc64.ECMA)

// CRC64 computes the reflected CRC-64 used by the XZ stream index
// (§4.3/§6).
type CRC64 struct {
	val uint64
}

// NewCRC64 returns a CRC64 accumulator primed to its initial state.
func NewCRC64() *CRC64 { return &CRC64{} }

func (c *CRC64) Update(buf []byte) {
	c.val = crc64.Update(c.val, crc64ECMATable, buf)
}

// Finalize returns the final CRC-64 value.
func (c *CRC64) Finalize() uint64 { return c.val }

// ComputeCRC64 is a single-shot convenience wrapper.
func ComputeCRC64(data []byte) uint64 {
	c := NewCRC64()
	c.Update(data)
	return c.Finalize()
}
