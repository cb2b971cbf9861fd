// Package parallel implements block-parallel bzip2 compression and
// decompression: a stream's blocks each carry their own complete Huffman
// tables and are therefore independently decodable once their starting bit
// offset is known, and independently encodable since the caller controls
// where it cuts the input. Adapted from a streaming io.Pipe/heap design to
// a simpler whole-buffer API: callers here already hold the complete
// compressed or uncompressed payload in memory, so results are collected
// into a preallocated, order-indexed slice instead of reassembled off an
// unbounded channel.
package parallel

import (
	"encoding/binary"

	"github.com/nyquistlabs/archivekit/bzip2"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/internal/bitstream"
)

var (
	blockMagicBytes = magic48(bzip2.BlockMagic48)
	endMagicBytes   = magic48(bzip2.StreamEndMagic48)

	blockPretest, blockFirst, blockSecond = bitstream.Init(blockMagicBytes)
	endPretest, endFirst, endSecond       = bitstream.Init(endMagicBytes)
)

func magic48(v uint64) [6]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v<<16)
	var m [6]byte
	copy(m[:], b[:6])
	return m
}

// blockSpan locates one block within the stream body (the bytes following
// the 4-byte "BZh<level>" header): ByteOffset/BitOffset give its start as
// byteOffset*8+bitOffset bits into body, matching the (src, startBits)
// arguments bzip2.NewBlockReader expects once src is sliced from
// ByteOffset onward.
type blockSpan struct {
	ByteOffset int
	BitOffset  int
}

// scanBody finds every block-magic occurrence in body plus the
// end-of-stream trailer, returning the block spans in stream order and the
// byte offset (relative to body) where the end-of-stream magic begins.
func scanBody(body []byte) (spans []blockSpan, trailerByteOffset int, trailerBitOffset int, err error) {
	pos := 0
	for {
		remaining := body[pos:]
		bOff, bit := bitstream.Scan(blockPretest, blockFirst, blockSecond, remaining)
		eOff, eBit := bitstream.Scan(endPretest, endFirst, endSecond, remaining)
		if bOff == -1 && eOff == -1 {
			return nil, 0, 0, &errs.CorruptedData{Message: "bzip2: no block or end-of-stream magic found"}
		}
		// Prefer whichever magic occurs first; a block magic occurring at
		// the very same bit position as an end magic cannot happen since
		// the two differ in their first bits.
		useBlock := bOff != -1 && (eOff == -1 || bOff < eOff || (bOff == eOff && bit <= eBit))
		if useBlock {
			spans = append(spans, blockSpan{ByteOffset: pos + bOff, BitOffset: bit})
			pos += bOff + len(blockMagicBytes)
			continue
		}
		return spans, pos + eOff, eBit, nil
	}
}
