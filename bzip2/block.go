package bzip2

import (
	"bytes"
	"io"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
)

// BlockReader decodes a single bzip2 block out of src, which must start at
// a whole-byte boundary that is startBits (0-7) short of the block's true
// bit position. bzip2/parallel locates these boundaries with its Scanner
// and hands each one to its own BlockReader so blocks can be decoded
// concurrently, ahead of where a purely sequential Reader would reach
// them.
type BlockReader struct {
	z       *Reader
	started bool
	start   uint
}

// NewBlockReader returns a BlockReader for one block's worth of data. src
// must contain at least that block; trailing bytes belonging to
// subsequent blocks are ignored.
func NewBlockReader(blockSize int, src []byte, startBits int) *BlockReader {
	z := &Reader{
		br:        bitio.NewMSBReader(bytes.NewReader(src)),
		blockSize: blockSize,
		tt:        make([]uint32, blockSize),
		setupDone: true,
	}
	return &BlockReader{z: z, start: uint(startBits)}
}

// Read implements io.Reader.
func (br *BlockReader) Read(buf []byte) (int, error) {
	if !br.started {
		br.z.br.ReadBits64(br.start)
		if br.z.br.ReadBits64(48) != blockMagic {
			return 0, &errs.CorruptedData{Message: "bzip2: bad block magic"}
		}
		if err := br.z.readBlock(); err != nil {
			return 0, err
		}
		br.started = true
	}
	n := br.z.readFromBlock(buf)
	if n > 0 || len(buf) == 0 {
		br.z.blockCRC.update(buf[:n])
		return n, nil
	}
	if br.z.blockCRC.val != br.z.wantBlockCRC {
		return 0, &errs.CrcMismatch{Expected: uint64(br.z.wantBlockCRC), Computed: uint64(br.z.blockCRC.val)}
	}
	return 0, io.EOF
}

// CRC returns the block's declared CRC. Valid only once Read has returned
// io.EOF, at which point readBlock has populated wantBlockCRC.
func (br *BlockReader) CRC() uint32 { return br.z.wantBlockCRC }
