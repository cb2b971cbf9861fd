// Package ring implements the sliding-window / ring buffer shared by the
// LZ77-family codecs (DEFLATE, LZMA, LZ4, LZH): an array plus two integers,
// deliberately not a linked structure, per §9 "Cyclic structures
// avoided".
package ring

import "github.com/nyquistlabs/archivekit/errs"

// Buffer is a power-of-two-capacity ring buffer recording recent output so
// that LZ77-style back-references can be resolved and replayed.
type Buffer struct {
	buf   []byte
	mask  uint32
	write uint32
	count uint32 // saturates at capacity
}

// New creates a Buffer with the given capacity, which must be a power of
// two (a hard construction-time check per §4.2).
func New(capacity int) *Buffer {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	return &Buffer{buf: make([]byte, capacity), mask: uint32(capacity - 1)}
}

// Cap returns the buffer's capacity.
func (b *Buffer) Cap() int { return len(b.buf) }

// Len returns the number of bytes written so far, saturating at Cap().
func (b *Buffer) Len() int { return int(b.count) }

// WriteByte appends a single byte to the window.
func (b *Buffer) WriteByte(c byte) error {
	b.buf[b.write&b.mask] = c
	b.write++
	if b.count < uint32(len(b.buf)) {
		b.count++
	}
	return nil
}

// Write appends p to the window, satisfying io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	for _, c := range p {
		_ = b.WriteByte(c)
	}
	return len(p), nil
}

// ByteAt returns the byte at back-distance d (1..=Len()), where d=1 is the
// most recently written byte.
func (b *Buffer) ByteAt(d int) byte {
	return b.buf[(b.write-uint32(d))&b.mask]
}

// CopyFromHistory performs an LZ77 overlap copy: copies length bytes from
// distance d behind the write cursor, appending them to the window and to
// dst. When length > d the copy walks one byte at a time so the
// already-appended bytes become part of the source, which is exactly what
// reproduces a repeating pattern (§4.2/§8).
func (b *Buffer) CopyFromHistory(dst []byte, d, length int) ([]byte, error) {
	if d == 0 || d > b.Len() {
		return dst, &errs.InvalidDistance{Distance: d, HistorySize: b.Len()}
	}
	for i := 0; i < length; i++ {
		c := b.ByteAt(d)
		dst = append(dst, c)
		_ = b.WriteByte(c)
	}
	return dst, nil
}

// PreloadDictionary loads up to Cap() bytes of dictionary content into the
// window without counting them as output, so that early matches can
// reference it (used by DEFLATE with a preset dictionary).
func (b *Buffer) PreloadDictionary(data []byte) {
	if len(data) > len(b.buf) {
		data = data[len(data)-len(b.buf):]
	}
	for _, c := range data {
		b.buf[b.write&b.mask] = c
		b.write++
	}
	if int(b.count)+len(data) > len(b.buf) {
		b.count = uint32(len(b.buf))
	} else {
		b.count += uint32(len(data))
	}
}

// Reset clears the buffer to its initial empty state, keeping the
// allocation for reuse across calls.
func (b *Buffer) Reset() {
	b.write = 0
	b.count = 0
}
