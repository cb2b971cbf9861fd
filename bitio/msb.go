package bitio

import (
	"bufio"
	"io"

	"github.com/nyquistlabs/archivekit/errs"
)

// MSBReader reads an MSB-first bit stream: the first bit read is the
// highest-order bit of the returned value. This is the bzip2 outer framing
// and LZW-TIFF bit order, generalized out of the bzip2 package so LZW can
// share it.
type MSBReader struct {
	r    io.ByteReader
	acc  uint64
	bits uint
	err  error
	read uint
}

// NewMSBReader returns an MSBReader consuming r.
func NewMSBReader(r io.Reader) *MSBReader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &MSBReader{r: br}
}

// ReadBits64 reads the given number of bits and returns them in the
// least-significant part of a uint64.
func (r *MSBReader) ReadBits64(n uint) uint64 {
	for n > r.bits {
		b, err := r.r.ReadByte()
		r.read++
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			r.err = err
			return 0
		}
		r.acc <<= 8
		r.acc |= uint64(b)
		r.bits += 8
	}
	v := (r.acc >> (r.bits - n)) & ((1 << n) - 1)
	r.bits -= n
	return v
}

// ReadBits reads n (<=32) bits as an int.
func (r *MSBReader) ReadBits(n uint) int { return int(r.ReadBits64(n)) }

// ReadBit reads a single bit as a bool.
func (r *MSBReader) ReadBit() bool { return r.ReadBits(1) != 0 }

// Prefetch reads n bytes ahead of demand into the accumulator, used by
// Huffman decode shortcuts that want several bytes worth of lookahead
// available without per-bit refills.
func (r *MSBReader) Prefetch(n uint) {
	if r.err != nil {
		return
	}
	for i := uint(0); i < n; i++ {
		b, err := r.r.ReadByte()
		r.read++
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			r.err = err
			return
		}
		r.acc <<= 8
		r.acc |= uint64(b)
		r.bits += 8
	}
}

// Acc exposes the raw accumulator and valid-bit count for Huffman decoders
// that peek ahead by a fixed number of bits (see huffman.Table.DecodeMSB).
func (r *MSBReader) Acc() (uint64, uint) { return r.acc, r.bits }

// Consume discards n already-buffered bits.
func (r *MSBReader) Consume(n uint) { r.bits -= n }

// BitsUsed reports the total number of bits consumed from the start of the
// stream (bytes read * 8, minus whatever remains buffered).
func (r *MSBReader) BitsUsed() uint { return r.read*8 - r.bits }

// AlignToByte discards the partial bits remaining in the accumulator.
func (r *MSBReader) AlignToByte() { r.bits -= r.bits % 8 }

// Err returns the first error encountered.
func (r *MSBReader) Err() error {
	if r.err == nil {
		return nil
	}
	if r.err == io.ErrUnexpectedEOF {
		return &errs.UnexpectedEof{Expected: "more bits"}
	}
	return &errs.Io{Err: r.err}
}

// MSBWriter writes an MSB-first bit stream, symmetric with MSBReader.
type MSBWriter struct {
	w       io.Writer
	acc     uint64
	n       uint
	err     error
	buf     [1]byte
	written uint64
}

// NewMSBWriter returns an MSBWriter flushing completed bytes to w.
func NewMSBWriter(w io.Writer) *MSBWriter { return &MSBWriter{w: w} }

// BitsWritten reports the total number of bits passed to WriteBits so far,
// independent of Flush's trailing zero-padding. Used by bzip2/parallel to
// bit-stitch independently encoded blocks without including pad bits.
func (w *MSBWriter) BitsWritten() uint64 { return w.written }

// WriteBits appends the low n bits of value, MSB-first (value's bit n-1 is
// written first).
func (w *MSBWriter) WriteBits(value uint32, n uint) {
	if n == 0 || w.err != nil {
		return
	}
	w.written += uint64(n)
	w.acc = (w.acc << n) | uint64(value&((1<<n)-1))
	w.n += n
	for w.n >= 8 {
		w.n -= 8
		w.buf[0] = byte(w.acc >> w.n)
		if _, err := w.w.Write(w.buf[:]); err != nil {
			w.err = err
			return
		}
	}
}

// Flush zero-pads any partial byte (in the low-order bits) and writes it.
func (w *MSBWriter) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.n > 0 {
		w.buf[0] = byte(w.acc << (8 - w.n))
		if _, err := w.w.Write(w.buf[:]); err != nil {
			w.err = err
			return err
		}
		w.acc, w.n = 0, 0
	}
	return nil
}

// Err returns the first write error encountered.
func (w *MSBWriter) Err() error { return w.err }
