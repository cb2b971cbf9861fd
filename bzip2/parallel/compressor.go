package parallel

import (
	"bytes"
	"context"
	"runtime"
	"sync"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/bzip2"
	"github.com/nyquistlabs/archivekit/internal/bitstream"
)

// Compress compresses data into a single ordinary bzip2 stream, encoding
// each blockSize-sized chunk concurrently and bit-stitching the results
// together with bitstream.BitWriter so the output has no inter-block
// padding: it is exactly what a single-threaded encoder configured with the
// same level would have produced, decodable by the plain sequential
// bzip2.Reader as well as by this package's own Decompress. Grounded on the
// teacher's parallel.go worker pool, adapted to a whole-buffer API and to
// building one continuous stream rather than relying on multistream
// concatenation.
func Compress(ctx context.Context, data []byte, level, concurrency int) ([]byte, error) {
	if level < 1 || level > 9 {
		level = 9
	}
	blockSize := bzip2.BlockSizeForLevel(level)
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(-1)
	}

	var chunks [][]byte
	for off := 0; off < len(data); off += blockSize {
		end := off + blockSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}

	type encoded struct {
		buf  []byte
		bits uint64
		crc  uint32
		err  error
	}
	results := make([]encoded, len(chunks))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		i, chunk := i, chunk
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			select {
			case <-ctx.Done():
				results[i] = encoded{err: ctx.Err()}
				return
			default:
			}
			var buf bytes.Buffer
			mw := bitio.NewMSBWriter(&buf)
			crc, err := bzip2.EncodeBlock(mw, chunk)
			if err != nil {
				results[i] = encoded{err: err}
				return
			}
			bits := mw.BitsWritten()
			if err := mw.Flush(); err != nil {
				results[i] = encoded{err: err}
				return
			}
			results[i] = encoded{buf: buf.Bytes(), bits: bits, crc: crc}
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
	}

	var header bytes.Buffer
	hw := bitio.NewMSBWriter(&header)
	bzip2.WriteStreamHeader(hw, level)
	if err := hw.Flush(); err != nil {
		return nil, err
	}

	bw := &bitstream.BitWriter{}
	bw.Init(header.Bytes(), header.Len()*8, header.Len()+len(data)/2+64)

	var combined uint32
	for _, r := range results {
		if r.bits > 0 {
			bw.Append(r.buf, 0, int(r.bits))
			combined = bzip2.CombineBlockCRC(combined, r.crc)
		}
	}

	var trailer bytes.Buffer
	tw := bitio.NewMSBWriter(&trailer)
	bzip2.WriteStreamTrailer(tw, combined)
	trailerBits := tw.BitsWritten()
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	bw.Append(trailer.Bytes(), 0, int(trailerBits))

	out, _ := bw.Data()
	return out, nil
}
