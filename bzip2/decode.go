// Package bzip2 implements BZip2 decompression and compression (§4.6):
// stream framing, per-block Huffman/MTF/BWT/RLE1 decode and encode, and the
// block-parallel split in the bzip2/parallel subpackage.
package bzip2

import (
	"bytes"
	"io"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/huffman"
)

const (
	streamMagic = 0x425a // "BZ"
	blockMagic  = 0x314159265359
	finalMagic  = 0x177245385090
)

// BlockMagic48 and StreamEndMagic48 expose the 48-bit per-block and
// end-of-stream magic numbers (each held in the low 48 bits of a uint64) for
// bzip2/parallel's block scanner, which must recognize them mid-bitstream.
const (
	BlockMagic48     = uint64(blockMagic)
	StreamEndMagic48 = uint64(finalMagic)
)

// BlockSizeForLevel returns the block size in bytes for a bzip2 -1..-9
// style compression level.
func BlockSizeForLevel(level int) int { return level * 100 * 1000 }

// WriteStreamHeader writes the 4-byte "BZh<level>" stream header.
func WriteStreamHeader(bw *bitio.MSBWriter, level int) {
	bw.WriteBits('B', 8)
	bw.WriteBits('Z', 8)
	bw.WriteBits('h', 8)
	bw.WriteBits(uint32('0'+level), 8)
}

// WriteStreamTrailer writes the end-of-stream magic and combined CRC that
// close a bzip2 stream.
func WriteStreamTrailer(bw *bitio.MSBWriter, combinedCRC uint32) {
	bw.WriteBits(finalMagic>>24, 24)
	bw.WriteBits(finalMagic&0xffffff, 24)
	bw.WriteBits(combinedCRC, 32)
}

// CombineBlockCRC folds a block's CRC into the running stream-level
// combined CRC, the same recurrence used internally by Reader and Writer.
func CombineBlockCRC(streamCRC, blockCRC uint32) uint32 {
	return (streamCRC<<1 | streamCRC>>31) ^ blockCRC
}

// Reader decompresses a bzip2 stream. Construct with NewReader.
type Reader struct {
	br           *bitio.MSBReader
	fileCRC      uint32
	blockCRC     blockCRC
	wantBlockCRC uint32
	setupDone    bool
	blockSize    int
	eof          bool

	c   [256]uint
	tt  []uint32
	tPos uint32

	preRLE      []uint32
	preRLEUsed  int
	lastByte    int
	byteRepeats uint
	repeats     uint
}

// NewReader returns a Reader decompressing bzip2 data from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bitio.NewMSBReader(r)}
}

func (z *Reader) setup(needMagic bool) error {
	if needMagic {
		magic := z.br.ReadBits64(16)
		if z.br.Err() != nil {
			return z.br.Err()
		}
		if magic != streamMagic {
			return &errs.InvalidMagic{Expected: []byte{'B', 'Z'}, Found: []byte{byte(magic >> 8), byte(magic)}}
		}
	}
	t := z.br.ReadBits64(8)
	if t != 'h' {
		return &errs.UnsupportedMethod{Name: "bzip2 non-Huffman entropy coding"}
	}
	level := z.br.ReadBits64(8)
	if level < '1' || level > '9' {
		return &errs.InvalidHeader{Message: "bzip2: invalid block-size digit"}
	}
	z.fileCRC = 0
	z.blockSize = 100 * 1000 * int(level-'0')
	if z.blockSize > len(z.tt) {
		z.tt = make([]uint32, z.blockSize)
	}
	return nil
}

// Read implements io.Reader.
func (z *Reader) Read(buf []byte) (int, error) {
	if z.eof {
		return 0, io.EOF
	}
	if !z.setupDone {
		if err := z.setup(true); err != nil {
			return 0, err
		}
		if z.br.Err() != nil {
			return 0, z.br.Err()
		}
		z.setupDone = true
	}
	n, err := z.read(buf)
	if z.br.Err() != nil {
		err = z.br.Err()
	}
	return n, err
}

func (z *Reader) readFromBlock(buf []byte) int {
	n := 0
	for (z.repeats > 0 || z.preRLEUsed < len(z.preRLE)) && n < len(buf) {
		if z.repeats > 0 {
			buf[n] = byte(z.lastByte)
			n++
			z.repeats--
			if z.repeats == 0 {
				z.lastByte = -1
			}
			continue
		}
		z.tPos = z.preRLE[z.tPos]
		b := byte(z.tPos)
		z.tPos >>= 8
		z.preRLEUsed++

		if z.byteRepeats == 3 {
			z.repeats = uint(b)
			z.byteRepeats = 0
			continue
		}
		if z.lastByte == int(b) {
			z.byteRepeats++
		} else {
			z.byteRepeats = 0
		}
		z.lastByte = int(b)
		buf[n] = b
		n++
	}
	return n
}

func (z *Reader) read(buf []byte) (int, error) {
	for {
		n := z.readFromBlock(buf)
		if n > 0 || len(buf) == 0 {
			z.blockCRC.update(buf[:n])
			return n, nil
		}
		if z.blockCRC.val != z.wantBlockCRC {
			return 0, &errs.CrcMismatch{Expected: uint64(z.wantBlockCRC), Computed: uint64(z.blockCRC.val)}
		}
		switch z.br.ReadBits64(48) {
		default:
			return 0, &errs.CorruptedData{Message: "bzip2: bad block magic"}
		case blockMagic:
			if err := z.readBlock(); err != nil {
				return 0, err
			}
		case finalMagic:
			wantFileCRC := uint32(z.br.ReadBits64(32))
			if z.br.Err() != nil {
				return 0, z.br.Err()
			}
			if z.fileCRC != wantFileCRC {
				return 0, &errs.CrcMismatch{Expected: uint64(wantFileCRC), Computed: uint64(z.fileCRC)}
			}
			z.br.AlignToByte()
			z.eof = true
			return 0, io.EOF
		}
	}
}

func (z *Reader) readBlock() error {
	z.wantBlockCRC = uint32(z.br.ReadBits64(32))
	z.blockCRC = blockCRC{}
	z.fileCRC = (z.fileCRC<<1 | z.fileCRC>>31) ^ z.wantBlockCRC

	randomized := z.br.ReadBits64(1)
	if randomized != 0 {
		return &errs.UnsupportedMethod{Name: "bzip2 deprecated randomized blocks"}
	}
	origPtr := uint(z.br.ReadBits64(24))

	symbolRangeUsed := z.br.ReadBits64(16)
	symbolPresent := make([]bool, 256)
	numSymbols := 0
	for symRange := uint(0); symRange < 16; symRange++ {
		if symbolRangeUsed&(1<<(15-symRange)) != 0 {
			bits := z.br.ReadBits64(16)
			for sym := uint(0); sym < 16; sym++ {
				if bits&(1<<(15-sym)) != 0 {
					symbolPresent[16*symRange+sym] = true
					numSymbols++
				}
			}
		}
	}
	if numSymbols == 0 {
		return &errs.CorruptedData{Message: "bzip2: no symbols present in block"}
	}

	numHuffmanTrees := int(z.br.ReadBits64(3))
	if numHuffmanTrees < 2 || numHuffmanTrees > 6 {
		return &errs.CorruptedData{Message: "bzip2: invalid Huffman table count"}
	}
	numSelectors := int(z.br.ReadBits64(15))
	treeIndexes := make([]uint8, numSelectors)
	selectorMTF := newMoveToFrontRange(numHuffmanTrees)
	for i := range treeIndexes {
		c := 0
		for z.br.ReadBits64(1) != 0 {
			c++
			if c >= numHuffmanTrees {
				return &errs.CorruptedData{Message: "bzip2: selector index too large"}
			}
		}
		treeIndexes[i] = selectorMTF.Decode(c)
	}

	symbols := make([]byte, numSymbols)
	next := 0
	for i := 0; i < 256; i++ {
		if symbolPresent[i] {
			symbols[next] = byte(i)
			next++
		}
	}
	symbolMTF := newMoveToFront(symbols)

	alphabetSize := numSymbols + 2
	tables := make([]*huffman.Table, numHuffmanTrees)
	lengths := make([]uint8, alphabetSize)
	for i := range tables {
		length := int(z.br.ReadBits64(5))
		for j := range lengths {
			for {
				if length < 1 || length > 20 {
					return &errs.CorruptedData{Message: "bzip2: Huffman length out of range"}
				}
				if z.br.ReadBits64(1) == 0 {
					break
				}
				if z.br.ReadBits64(1) != 0 {
					length--
				} else {
					length++
				}
			}
			lengths[j] = uint8(length)
		}
		t, err := huffman.New(lengths, 1)
		if err != nil {
			return err
		}
		tables[i] = t
	}

	if len(treeIndexes) == 0 {
		return &errs.CorruptedData{Message: "bzip2: no selectors present"}
	}
	if int(treeIndexes[0]) >= len(tables) {
		return &errs.CorruptedData{Message: "bzip2: selector out of range"}
	}
	current := tables[treeIndexes[0]]
	selectorIndex := 1
	bufIndex := 0
	repeat := 0
	repeatPower := 0

	for i := range z.c {
		z.c[i] = 0
	}

	decoded := 0
	for {
		if decoded == 50 {
			if selectorIndex >= numSelectors {
				return &errs.CorruptedData{Message: "bzip2: not enough selectors"}
			}
			if int(treeIndexes[selectorIndex]) >= len(tables) {
				return &errs.CorruptedData{Message: "bzip2: selector out of range"}
			}
			current = tables[treeIndexes[selectorIndex]]
			selectorIndex++
			decoded = 0
		}

		v, err := current.DecodeMSB(z.br)
		if err != nil {
			return err
		}
		decoded++

		if v < 2 {
			if repeat == 0 {
				repeatPower = 1
			}
			repeat += repeatPower << v
			repeatPower <<= 1
			if repeat > 2*1024*1024 {
				return &errs.CorruptedData{Message: "bzip2: run-length repeat count too large"}
			}
			continue
		}

		if repeat > 0 {
			if repeat > z.blockSize-bufIndex {
				return &errs.CorruptedData{Message: "bzip2: run-length repeat past end of block"}
			}
			b := symbolMTF.First()
			z.c[b] += uint(repeat)
			for k := 0; k < repeat; k++ {
				z.tt[bufIndex+k] = uint32(b)
			}
			bufIndex += repeat
			repeat = 0
		}

		if int(v) == alphabetSize-1 {
			break
		}
		b := symbolMTF.Decode(int(v) - 1)
		if bufIndex >= z.blockSize {
			return &errs.CorruptedData{Message: "bzip2: data exceeds block size"}
		}
		z.tt[bufIndex] = uint32(b)
		z.c[b]++
		bufIndex++
	}

	if origPtr >= uint(bufIndex) {
		return &errs.CorruptedData{Message: "bzip2: original pointer out of bounds"}
	}
	z.preRLE = z.tt[:bufIndex]
	z.preRLEUsed = 0
	z.tPos = inverseBWT(z.preRLE, origPtr, z.c[:])
	z.lastByte = -1
	z.byteRepeats = 0
	z.repeats = 0
	return nil
}

// Decode decompresses a complete bzip2 stream held in memory.
func Decode(data []byte) ([]byte, error) {
	return io.ReadAll(NewReader(bytes.NewReader(data)))
}
