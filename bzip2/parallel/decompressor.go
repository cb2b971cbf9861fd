package parallel

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/bzip2"
	"github.com/nyquistlabs/archivekit/errs"
)

// Decompress decompresses a complete bzip2 stream, decoding its blocks
// concurrently across up to concurrency workers (GOMAXPROCS if
// concurrency<=0) before reassembling them in order. Grounded on the
// teacher's Decompressor/worker/assemble pipeline in parallel.go, simplified
// for a whole-buffer-in, whole-buffer-out API: since every block's byte
// span is known upfront from the scan, results are written into an
// order-indexed slice rather than drained off a channel through a heap.
func Decompress(ctx context.Context, data []byte, concurrency int) ([]byte, error) {
	if len(data) < 4 || data[0] != 'B' || data[1] != 'Z' || data[2] != 'h' || data[3] < '1' || data[3] > '9' {
		return nil, &errs.InvalidHeader{Message: "bzip2: not a bzip2 stream"}
	}
	level := int(data[3] - '0')
	blockSize := bzip2.BlockSizeForLevel(level)
	body := data[4:]

	spans, trailerByteOffset, trailerBitOffset, err := scanBody(body)
	if err != nil {
		return nil, err
	}

	type result struct {
		data []byte
		crc  uint32
		err  error
	}
	results := make([]result, len(spans))

	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(-1)
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, span := range spans {
		i, span := i, span
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			select {
			case <-ctx.Done():
				results[i] = result{err: ctx.Err()}
				return
			default:
			}
			// Each block carries its own complete Huffman tables and its
			// own EOB marker, so it is safe to hand the remainder of body
			// to NewBlockReader: readBlock stops consuming bits once it
			// has decoded that one block, regardless of what follows.
			br := bzip2.NewBlockReader(blockSize, body[span.ByteOffset:], span.BitOffset)
			out, err := io.ReadAll(br)
			if err != nil {
				results[i] = result{err: err}
				return
			}
			results[i] = result{data: out, crc: br.CRC()}
		}()
	}
	wg.Wait()

	var out bytes.Buffer
	var combined uint32
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		out.Write(r.data)
		combined = bzip2.CombineBlockCRC(combined, r.crc)
	}

	wantCRC := readTrailerCRC(body, trailerByteOffset, trailerBitOffset)
	if wantCRC != combined {
		return nil, &errs.CrcMismatch{Expected: uint64(wantCRC), Computed: uint64(combined)}
	}
	return out.Bytes(), nil
}

// readTrailerCRC reads the 32-bit combined CRC that follows the
// end-of-stream magic, positioned byteOffset*8+bitOffset+48 bits into body.
func readTrailerCRC(body []byte, byteOffset, bitOffset int) uint32 {
	br := bitio.NewMSBReader(bytes.NewReader(body[byteOffset:]))
	br.ReadBits64(uint(bitOffset) + 48)
	return uint32(br.ReadBits64(32))
}
