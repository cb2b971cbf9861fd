package zstd

import (
	"github.com/nyquistlabs/archivekit/checksum"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/huffman"
	"github.com/nyquistlabs/archivekit/ring"
)

const (
	blockRaw = iota
	blockRLE
	blockCompressed
	blockReserved
)

const maxBlockSize = 128 << 10

// Decode decompresses a single Zstandard frame (§4.8): frame header,
// then a sequence of blocks, then an optional trailing content checksum.
// Dictionary-ID framing is parsed but unresolved dictionaries are rejected,
// since this package has no dictionary store to look one up in.
func Decode(data []byte) ([]byte, error) {
	c := newCursor(data)
	header, err := parseFrameHeader(c)
	if err != nil {
		return nil, err
	}
	if header.DictionaryID != 0 {
		return nil, &errs.UnsupportedMethod{Name: "zstd dictionary-compressed frame"}
	}

	dict := ring.New(ringCapacity(header.WindowSize))
	seqState := newSequencesState()
	var prevHuffman *huffman.Table

	var out []byte
	for {
		blockHeader, err := c.le24()
		if err != nil {
			return nil, err
		}
		last := blockHeader&0x1 != 0
		blockType := (blockHeader >> 1) & 0x3
		blockSize := int(blockHeader >> 3)
		if blockType == blockReserved {
			return nil, &errs.InvalidHeader{Message: "zstd: reserved block type"}
		}
		if blockType != blockRLE && blockSize > maxBlockSize {
			return nil, &errs.CorruptedData{Message: "zstd: block exceeds maximum size"}
		}

		// RLE blocks carry a single repeated byte; the header's size field
		// is the output repeat count, not the on-wire body length.
		takeLen := blockSize
		if blockType == blockRLE {
			takeLen = 1
		}
		body, err := c.take(takeLen)
		if err != nil {
			return nil, err
		}

		switch blockType {
		case blockRaw:
			out = append(out, body...)
			if _, err := dict.Write(body); err != nil {
				return nil, err
			}
		case blockRLE:
			chunk := make([]byte, blockSize)
			for i := range chunk {
				chunk[i] = body[0]
			}
			out = append(out, chunk...)
			if _, err := dict.Write(chunk); err != nil {
				return nil, err
			}
		case blockCompressed:
			lits, err := decodeLiterals(body, prevHuffman)
			if err != nil {
				return nil, err
			}
			prevHuffman = lits.table
			rest := body[lits.consumed:]
			produced, err := decodeSequencesAndExecute(rest, lits.data, dict, seqState)
			if err != nil {
				return nil, err
			}
			out = append(out, produced...)
		}

		if last {
			break
		}
	}

	if header.HasContentSize && uint64(len(out)) != header.ContentSize {
		return nil, &errs.CorruptedData{Message: "zstd: decompressed size does not match frame content size"}
	}

	if header.HasChecksum {
		want, err := c.take(4)
		if err != nil {
			return nil, err
		}
		sum := checksum.XXHash64(0, out)
		got := uint32(sum)
		wantVal := readLE32(want)
		if got != wantVal {
			return nil, &errs.CrcMismatch{Expected: uint64(wantVal), Computed: uint64(got)}
		}
	}

	return out, nil
}
