package zstd

import (
	"io"
	"math/bits"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/fse"
	"github.com/nyquistlabs/archivekit/huffman"
)

const (
	litRaw = iota
	litRLE
	litCompressed
	litTreeless
)

// literalsResult is a decoded literals section plus the number of input
// bytes it consumed, so the block decoder can locate the following
// sequences section.
type literalsResult struct {
	data     []byte
	consumed int
	table    *huffman.Table // non-nil when this block built/reused a table
}

const huffmanWeightMaxSymbol = 12
const huffmanFastBits = 9

func decodeLiterals(block []byte, prevTable *huffman.Table) (*literalsResult, error) {
	if len(block) == 0 {
		return nil, &errs.UnexpectedEof{Expected: "zstd literals section header"}
	}
	b0 := block[0]
	blockType := b0 & 0x3
	sizeFormat := (b0 >> 2) & 0x3

	switch blockType {
	case litRaw, litRLE:
		var headerLen, regenSize int
		switch sizeFormat & 0x1 {
		case 0:
			headerLen = 1
			regenSize = int(b0 >> 3)
		default:
			if sizeFormat&0x2 == 0 {
				headerLen = 2
				if len(block) < 2 {
					return nil, &errs.UnexpectedEof{Expected: "zstd literals header"}
				}
				regenSize = int(b0>>4) | int(block[1])<<4
			} else {
				headerLen = 3
				if len(block) < 3 {
					return nil, &errs.UnexpectedEof{Expected: "zstd literals header"}
				}
				regenSize = int(b0>>4) | int(block[1])<<4 | int(block[2])<<12
			}
		}
		if blockType == litRaw {
			if len(block) < headerLen+regenSize {
				return nil, &errs.UnexpectedEof{Expected: "zstd raw literals"}
			}
			data := append([]byte(nil), block[headerLen:headerLen+regenSize]...)
			return &literalsResult{data: data, consumed: headerLen + regenSize}, nil
		}
		if len(block) < headerLen+1 {
			return nil, &errs.UnexpectedEof{Expected: "zstd RLE literal byte"}
		}
		data := make([]byte, regenSize)
		for i := range data {
			data[i] = block[headerLen]
		}
		return &literalsResult{data: data, consumed: headerLen + 1}, nil

	case litCompressed, litTreeless:
		var headerLen, regenSize, compSize, numStreams int
		switch sizeFormat {
		case 0:
			headerLen, numStreams = 3, 1
		case 1:
			headerLen, numStreams = 3, 4
		case 2:
			headerLen, numStreams = 4, 4
		default:
			headerLen, numStreams = 5, 4
		}
		if len(block) < headerLen {
			return nil, &errs.UnexpectedEof{Expected: "zstd compressed literals header"}
		}
		switch sizeFormat {
		case 0, 1:
			regenSize = int(block[0]>>4) | int(block[1]&0x3F)<<4
			compSize = int(block[1]>>6) | int(block[2])<<2
		case 2:
			regenSize = int(block[0]>>4) | int(block[1])<<4 | int(block[2]&0x3)<<12
			compSize = int(block[2]>>2) | int(block[3])<<6
		default:
			regenSize = int(block[0]>>4) | int(block[1])<<4 | int(block[2]&0x3F)<<12
			compSize = int(block[2]>>6) | int(block[3])<<2 | int(block[4])<<10
		}
		if len(block) < headerLen+compSize {
			return nil, &errs.UnexpectedEof{Expected: "zstd compressed literals body"}
		}
		body := block[headerLen : headerLen+compSize]
		consumed := headerLen + compSize

		table := prevTable
		if blockType == litCompressed {
			t, rest, err := readHuffmanTable(body)
			if err != nil {
				return nil, err
			}
			table = t
			body = rest
		}
		if table == nil {
			return nil, &errs.CorruptedData{Message: "zstd: treeless literals with no previous Huffman table"}
		}

		var out []byte
		if numStreams == 1 {
			decoded, err := decodeHuffmanStream(body, table, regenSize)
			if err != nil {
				return nil, err
			}
			out = decoded
		} else {
			if len(body) < 6 {
				return nil, &errs.UnexpectedEof{Expected: "zstd 4-stream jump table"}
			}
			sizes := [4]int{
				int(body[0]) | int(body[1])<<8,
				int(body[2]) | int(body[3])<<8,
				int(body[4]) | int(body[5])<<8,
			}
			streams := body[6:]
			off := 0
			perStream := (regenSize + 3) / 4
			remaining := regenSize
			for i := 0; i < 4; i++ {
				var sz int
				if i < 3 {
					sz = sizes[i]
				} else {
					sz = len(streams) - off
				}
				if off+sz > len(streams) {
					return nil, &errs.UnexpectedEof{Expected: "zstd huffman stream"}
				}
				outSize := perStream
				if i == 3 || outSize > remaining {
					outSize = remaining
				}
				decoded, err := decodeHuffmanStream(streams[off:off+sz], table, outSize)
				if err != nil {
					return nil, err
				}
				out = append(out, decoded...)
				remaining -= outSize
				off += sz
			}
		}
		return &literalsResult{data: out, consumed: consumed, table: table}, nil
	}
	return nil, &errs.CorruptedData{Message: "zstd: reserved literals block type"}
}

func decodeHuffmanStream(stream []byte, table *huffman.Table, outSize int) ([]byte, error) {
	if outSize == 0 {
		return nil, nil
	}
	br, err := fse.NewReverseBitReader(stream)
	if err != nil {
		return nil, err
	}
	out := make([]byte, outSize)
	for i := 0; i < outSize; i++ {
		sym, err := table.DecodeReverse(br)
		if err != nil {
			return nil, err
		}
		out[i] = byte(sym)
	}
	return out, nil
}

// readHuffmanTable parses a Huffman table description (§4.8 "Huffman
// table description") from the front of body, returning the built table and
// the remainder of body (the Huffman-coded stream data).
func readHuffmanTable(body []byte) (*huffman.Table, []byte, error) {
	if len(body) == 0 {
		return nil, nil, &errs.UnexpectedEof{Expected: "zstd huffman table header"}
	}
	header := body[0]
	var weights []uint8

	if header < 128 {
		blobLen := int(header)
		if len(body) < 1+blobLen {
			return nil, nil, &errs.UnexpectedEof{Expected: "zstd fse-compressed huffman weights"}
		}
		blob := body[1 : 1+blobLen]
		fr := bitio.NewReader(&sliceReader{blob})
		counts, accLog, err := fse.ReadNormalizedCounts(fr, huffmanWeightMaxSymbol)
		if err != nil {
			return nil, nil, err
		}
		table, err := fse.BuildTable(counts, accLog)
		if err != nil {
			return nil, nil, err
		}
		br, err := fse.NewReverseBitReader(blob)
		if err != nil {
			return nil, nil, err
		}
		// The weight stream carries no explicit symbol count: decode until
		// the reversed bitstream runs out of bits, keeping the last symbol
		// produced even when the state transition that follows it is what
		// errors (that transition was only needed to look further, not to
		// validate the symbol already returned).
		dec := fse.NewDecoder(table, br)
		for i := 0; i < 255; i++ {
			w, err := dec.Decode()
			weights = append(weights, w)
			if err != nil {
				break
			}
		}
		body = body[1+blobLen:]
	} else {
		numSymbols := int(header) - 127
		nbytes := (numSymbols + 1) / 2
		if len(body) < 1+nbytes {
			return nil, nil, &errs.UnexpectedEof{Expected: "zstd direct huffman weights"}
		}
		raw := body[1 : 1+nbytes]
		for i := 0; i < numSymbols; i++ {
			b := raw[i/2]
			if i%2 == 0 {
				weights = append(weights, b>>4)
			} else {
				weights = append(weights, b&0xF)
			}
		}
		body = body[1+nbytes:]
	}

	lengths, err := weightsToLengths(weights)
	if err != nil {
		return nil, nil, err
	}
	table, err := huffman.New(lengths, huffmanFastBits)
	if err != nil {
		return nil, nil, err
	}
	return table, body, nil
}

// weightsToLengths derives per-symbol canonical code lengths from Huffman
// weights (§4.8): max_bits = ceil(log2(sum of 2^(w-1))), then
// length = max_bits+1-w; the final symbol's weight is implied so that the
// full set sums to exactly 2^max_bits.
func weightsToLengths(weights []uint8) ([]uint8, error) {
	if len(weights) == 0 {
		return nil, &errs.CorruptedData{Message: "zstd: empty huffman weight list"}
	}
	var sum uint32
	for _, w := range weights {
		if w > 0 {
			sum += 1 << (w - 1)
		}
	}
	if sum == 0 {
		return nil, &errs.CorruptedData{Message: "zstd: huffman weights sum to zero"}
	}
	maxBits := ceilLog2(sum)
	total := uint32(1) << maxBits
	if sum > total {
		return nil, &errs.CorruptedData{Message: "zstd: huffman weights overflow table"}
	}
	remaining := total - sum

	full := weights
	if remaining > 0 {
		lastWeight := uint8(bits.Len32(remaining))
		full = append(append([]uint8(nil), weights...), lastWeight)
	}

	lengths := make([]uint8, len(full))
	for i, w := range full {
		if w == 0 {
			continue
		}
		lengths[i] = maxBits + 1 - w
	}
	return lengths, nil
}

func ceilLog2(x uint32) uint8 {
	if x <= 1 {
		return 0
	}
	return uint8(bits.Len32(x - 1))
}

// sliceReader adapts a []byte to io.Reader for bitio.NewReader, which only
// needs ReadByte (bitio wraps non-ByteReader sources in a bufio.Reader, but
// a plain byte-slice reader avoids that extra indirection).
type sliceReader struct{ b []byte }

func (s *sliceReader) Read(p []byte) (int, error) {
	n := copy(p, s.b)
	if n == 0 {
		return 0, io.EOF
	}
	s.b = s.b[n:]
	return n, nil
}
