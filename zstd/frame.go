package zstd

import (
	"github.com/nyquistlabs/archivekit/errs"
)

// cursor is a plain forward reader over an in-memory frame: every block,
// header and section in this format declares its own length up front, so a
// slice-and-advance cursor is simpler to reason about than an io.Reader
// wrapper and needs no buffering.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor { return &cursor{data: data} }

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, &errs.UnexpectedEof{Expected: "zstd frame data"}
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) byte() (byte, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) le24() (uint32, error) {
	b, err := c.take(3)
	if err != nil {
		return 0, err
	}
	return readLE24(b), nil
}

func (c *cursor) le32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return readLE32(b), nil
}

// FrameHeader holds the parsed fixed framing that precedes a Zstandard
// frame's block sequence (§4.8 "Frame").
type FrameHeader struct {
	WindowSize        uint64
	DictionaryID      uint64
	HasContentSize    bool
	ContentSize       uint64
	HasChecksum       bool
	SingleSegment     bool
}

const defaultWindowCeiling = 8 << 20 // this format's "cap at a chosen maximum (>=8 MiB)"

func parseFrameHeader(c *cursor) (*FrameHeader, error) {
	magic, err := c.le32()
	if err != nil {
		return nil, err
	}
	if magic != magicNumber {
		want := []byte{0x28, 0xB5, 0x2F, 0xFD}
		return nil, &errs.InvalidMagic{Expected: want, Found: []byte{byte(magic), byte(magic >> 8), byte(magic >> 16), byte(magic >> 24)}}
	}

	descriptor, err := c.byte()
	if err != nil {
		return nil, err
	}
	dictIDFlag := descriptor & 0x3
	checksumFlag := descriptor&0x4 != 0
	singleSegment := descriptor&0x20 != 0
	fcsFlag := (descriptor >> 6) & 0x3

	h := &FrameHeader{HasChecksum: checksumFlag, SingleSegment: singleSegment}

	if !singleSegment {
		wd, err := c.byte()
		if err != nil {
			return nil, err
		}
		exponent := uint(wd >> 3)
		mantissa := uint64(wd & 0x7)
		base := uint64(1) << (10 + exponent)
		h.WindowSize = base + (base>>3)*mantissa
	}

	dictIDLen := [4]int{0, 1, 2, 4}[dictIDFlag]
	if dictIDLen > 0 {
		b, err := c.take(dictIDLen)
		if err != nil {
			return nil, err
		}
		var v uint64
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		h.DictionaryID = v
	}

	fcsLen := 0
	switch {
	case fcsFlag == 0 && singleSegment:
		fcsLen = 1
	case fcsFlag == 0:
		fcsLen = 0
	case fcsFlag == 1:
		fcsLen = 2
	case fcsFlag == 2:
		fcsLen = 4
	case fcsFlag == 3:
		fcsLen = 8
	}
	if fcsLen > 0 {
		b, err := c.take(fcsLen)
		if err != nil {
			return nil, err
		}
		var v uint64
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		if fcsLen == 2 {
			v += 256
		}
		h.ContentSize = v
		h.HasContentSize = true
	}

	if singleSegment {
		if h.HasContentSize {
			h.WindowSize = h.ContentSize
		} else {
			h.WindowSize = defaultWindowCeiling
		}
	}
	if h.WindowSize == 0 || h.WindowSize > defaultWindowCeiling {
		if h.WindowSize > defaultWindowCeiling {
			h.WindowSize = defaultWindowCeiling
		}
		if h.WindowSize == 0 {
			h.WindowSize = 1024
		}
	}
	return h, nil
}

// ringCapacity rounds a window size up to the next power of two, the form
// ring.New requires, bounded below by 1KiB and above by the window ceiling
// this package enforces.
func ringCapacity(windowSize uint64) int {
	if windowSize < 1024 {
		windowSize = 1024
	}
	if windowSize > defaultWindowCeiling {
		windowSize = defaultWindowCeiling
	}
	cap := 1
	for uint64(cap) < windowSize {
		cap <<= 1
	}
	return cap
}
