package fse

import (
	"math/bits"

	"github.com/nyquistlabs/archivekit/errs"
)

// ReverseBitReader reads a Zstandard "reversed" bitstream (§4.8, RFC
// 8878 §3.1.1): bits are consumed starting just below the sentinel bit in
// the last byte, down to bit 0 of that byte, then bit 7 down to bit 0 of
// each preceding byte in turn, finishing at bit 0 of the first byte.
type ReverseBitReader struct {
	buf     []byte
	byteIdx int
	bitIdx  int
	err     error
}

// NewReverseBitReader locates the sentinel bit (the highest set bit of the
// last byte) and positions the cursor just below it.
func NewReverseBitReader(buf []byte) (*ReverseBitReader, error) {
	if len(buf) == 0 {
		return nil, &errs.UnexpectedEof{Expected: "fse reversed bitstream"}
	}
	last := buf[len(buf)-1]
	if last == 0 {
		return nil, &errs.InvalidHeader{Message: "fse: reversed bitstream missing sentinel bit"}
	}
	sentinel := bits.Len8(last) - 1
	return &ReverseBitReader{buf: buf, byteIdx: len(buf) - 1, bitIdx: sentinel - 1}, nil
}

// ReadBit returns the next bit, or 0 with Err set once the buffer is
// exhausted.
func (r *ReverseBitReader) ReadBit() uint32 {
	for r.bitIdx < 0 {
		r.byteIdx--
		if r.byteIdx < 0 {
			r.err = &errs.UnexpectedEof{Expected: "fse reversed bitstream"}
			return 0
		}
		r.bitIdx = 7
	}
	b := (r.buf[r.byteIdx] >> uint(r.bitIdx)) & 1
	r.bitIdx--
	return uint32(b)
}

// ReadBits returns the next n bits, MSB of the result read first.
func (r *ReverseBitReader) ReadBits(n uint) uint32 {
	var v uint32
	for i := uint(0); i < n; i++ {
		v = (v << 1) | r.ReadBit()
	}
	return v
}

// Err returns the first short-read error encountered.
func (r *ReverseBitReader) Err() error { return r.err }
