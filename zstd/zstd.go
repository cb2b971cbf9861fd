// Package zstd implements a Zstandard frame decoder and a raw/RLE-only
// encoder (§4.8, RFC 8878). Decode understands the full format:
// window/dictionary/content-size framing, raw/RLE/compressed blocks,
// Huffman-coded literals (including the 4-stream split), and FSE-coded
// sequences with repeat-offset tracking. The encoder deliberately does not
// attempt LZ77 match finding or entropy coding of its own — see encode.go.
package zstd

import "encoding/binary"

const magicNumber = 0xFD2FB528

func readLE24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func writeLE24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func readLE32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
