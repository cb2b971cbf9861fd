// Package bitio provides the LSB-first and MSB-first bit-stream readers and
// writers shared by the codec packages. The LSB-first reader/writer serve
// DEFLATE, LZH, LZMA2 framing and LZ4; the MSB-first variants serve BZip2
// and LZW's TIFF bit order.
//
// The accumulator discipline follows a bzip2-style bit reader: a uint64
// accumulator refilled a byte at a time, with reads satisfied by shifting
// and masking rather than bit-by-bit loops.
package bitio

import (
	"bufio"
	"io"

	"github.com/nyquistlabs/archivekit/errs"
)

// Reader reads an LSB-first bit stream: bit 0 of a read value is the first
// bit read from the stream, matching DEFLATE/LZH/LZMA2/LZ4 framing.
type Reader struct {
	r    io.ByteReader
	acc  uint64
	n    uint // number of valid bits in acc, low-order aligned
	err  error
	read uint // total bytes pulled from the underlying reader
}

// NewReader returns a Reader consuming r. If r does not already implement
// io.ByteReader it is wrapped in a bufio.Reader.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br}
}

func (r *Reader) fill(need uint) {
	for r.n < need {
		if r.err != nil {
			return
		}
		b, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			r.err = err
			return
		}
		r.read++
		r.acc |= uint64(b) << r.n
		r.n += 8
	}
}

// ReadBits reads n (0..=32) bits and returns them in the low-order bits of
// the result, LSB-first.
func (r *Reader) ReadBits(n uint) uint32 {
	if n == 0 {
		return 0
	}
	if r.n < n {
		r.fill(n)
		if r.err != nil {
			return 0
		}
	}
	v := uint32(r.acc & ((1 << n) - 1))
	r.acc >>= n
	r.n -= n
	return v
}

// PeekBits returns the next n bits without consuming them. Repeated calls
// return the same value until SkipBits or ReadBits intervenes.
func (r *Reader) PeekBits(n uint) uint32 {
	if r.n < n {
		r.fill(n)
		if r.err != nil {
			return 0
		}
	}
	return uint32(r.acc & ((1 << n) - 1))
}

// SkipBits discards n already-buffered bits (n must be <= the number of
// bits last peeked).
func (r *Reader) SkipBits(n uint) {
	if n > r.n {
		n = r.n
	}
	r.acc >>= n
	r.n -= n
}

// AlignToByte discards the partial bits remaining in the accumulator so the
// next read starts at a byte boundary.
func (r *Reader) AlignToByte() {
	r.acc >>= r.n % 8
	r.n -= r.n % 8
}

// ReadByteAligned flushes any partial bits and reads one whole byte.
func (r *Reader) ReadByteAligned() byte {
	r.AlignToByte()
	return byte(r.ReadBits(8))
}

// BitsBuffered reports the number of bits currently held in the
// accumulator, for callers that need to know alignment without consuming.
func (r *Reader) BitsBuffered() uint { return r.n }

// BytesRead reports how many bytes have been pulled from the underlying
// reader so far (used by formats that need a running byte offset).
func (r *Reader) BytesRead() uint { return r.read }

// Err returns the first error encountered, wrapped as errs.UnexpectedEof
// when caused by a short read mid-structure.
func (r *Reader) Err() error {
	if r.err == nil {
		return nil
	}
	if r.err == io.ErrUnexpectedEOF {
		return &errs.UnexpectedEof{Expected: "more bits"}
	}
	return &errs.Io{Err: r.err}
}
