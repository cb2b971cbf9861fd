// Package lzh implements the lha compression methods used inside LZH
// archives (§4.10): lh0 (stored) and lh4/lh5/lh6/lh7, an LZSS match
// stream entropy-coded with three canonical Huffman tables per block (a
// character/length tree, a position tree, and a temporary tree used only to
// compress the character tree's own code lengths on the wire).
package lzh

import (
	"bytes"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/ring"
)

// NC is the character/length alphabet size: 256 literal bytes plus 254
// match-length codes (length 3..256).
const NC = 510

// NT is the temporary-tree alphabet size used to Huffman-code the C-tree's
// own code lengths.
const NT = 20

// maxCodeLength bounds every tree's code length; position 7 in the 3-bit
// length field escapes to a unary extension for anything longer.
const maxCodeLength = 16

// Method identifies one of the five lha compression methods.
type Method int

const (
	Lh0 Method = iota
	Lh4
	Lh5
	Lh6
	Lh7
)

func (m Method) String() string {
	switch m {
	case Lh0:
		return "lh0"
	case Lh4:
		return "lh4"
	case Lh5:
		return "lh5"
	case Lh6:
		return "lh6"
	case Lh7:
		return "lh7"
	default:
		return "lh?"
	}
}

// WindowSize returns the LZSS history window in bytes (§4.10: 4/8/32/64
// KiB for lh4/5/6/7; lh0 carries no window since it is stored verbatim).
func (m Method) WindowSize() int {
	switch m {
	case Lh4:
		return 4 << 10
	case Lh5:
		return 8 << 10
	case Lh6:
		return 32 << 10
	case Lh7:
		return 64 << 10
	default:
		return 0
	}
}

// positionAlphabetSize returns np, the P-tree's alphabet size, which varies
// by method because it must cover every possible distance code up to the
// method's window size.
func (m Method) positionAlphabetSize() int {
	switch m {
	case Lh4:
		return 14
	case Lh5:
		return 14
	case Lh6:
		return 16
	case Lh7:
		return 17
	default:
		return 0
	}
}

// IsStored reports whether m is lh0, the uncompressed passthrough method.
func (m Method) IsStored() bool { return m == Lh0 }

// Decode decompresses an lha method stream. uncompressedSize is supplied
// out-of-band (lha headers carry it at the container layer; §6 lists
// LZH among the formats whose codec interface takes an explicit size).
func Decode(data []byte, method Method, uncompressedSize uint64) ([]byte, error) {
	if method.IsStored() {
		return decodeStored(data, uncompressedSize)
	}
	r := bitio.NewReader(bytes.NewReader(data))
	return decodeCompressed(r, method, uncompressedSize)
}

func decodeStored(data []byte, uncompressedSize uint64) ([]byte, error) {
	if uint64(len(data)) < uncompressedSize {
		return nil, &errs.UnexpectedEof{Expected: "lzh stored data"}
	}
	out := make([]byte, uncompressedSize)
	copy(out, data)
	return out, nil
}

// decodeCompressed runs the block loop (§4.10): each block carries its
// own C-tree/P-tree pair, preceded by a 16-bit block size that this
// implementation (following the reference it is grounded on) treats as the
// number of output bytes the block contributes, not a symbol count.
func decodeCompressed(r *bitio.Reader, method Method, uncompressedSize uint64) ([]byte, error) {
	np := method.positionAlphabetSize()
	win := ring.New(method.WindowSize())
	var out []byte
	var decoded uint64

	for decoded < uncompressedSize {
		blockSize := uint64(r.ReadBits(16))
		if err := r.Err(); err != nil {
			return nil, err
		}
		if blockSize == 0 {
			break
		}
		cTree, err := readCTree(r)
		if err != nil {
			return nil, err
		}
		pTree, err := readPTree(r, np)
		if err != nil {
			return nil, err
		}

		target := decoded + blockSize
		if target > uncompressedSize {
			target = uncompressedSize
		}
		for decoded < target {
			c, err := cTree.DecodeLSB(r)
			if err != nil {
				return nil, err
			}
			if c < 256 {
				b := byte(c)
				out = append(out, b)
				if err := win.WriteByte(b); err != nil {
					return nil, err
				}
				decoded++
				continue
			}

			length := int(c) - 256 + 3
			p, err := pTree.DecodeLSB(r)
			if err != nil {
				return nil, err
			}
			var distance int
			if p == 0 {
				distance = 1
			} else {
				extra := r.ReadBits(uint(p))
				if err := r.Err(); err != nil {
					return nil, err
				}
				distance = (1 << p) + int(extra)
			}
			out, err = win.CopyFromHistory(out, distance, length)
			if err != nil {
				return nil, err
			}
			decoded += uint64(length)
		}
	}

	if decoded != uncompressedSize {
		return nil, &errs.CorruptedData{Message: "lzh: decoded size does not match expected uncompressed size"}
	}
	return out, nil
}
