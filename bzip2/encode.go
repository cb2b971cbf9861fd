package bzip2

import (
	"bytes"
	"io"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/huffman"
)

const defaultBlockSize100k = 9 // 900,000 bytes, bzip2 -9 equivalent

// Writer compresses data into a bzip2 stream. Construct with NewWriter.
// The whole block is buffered in memory and the BWT/Huffman tables are
// computed when the block is flushed, so Close must be called to emit the
// final (possibly short) block and the stream trailer.
type Writer struct {
	bw          *bitio.MSBWriter
	level       int
	blockSize   int
	buf         []byte
	fileCRC     uint32
	wroteHeader bool
	err         error
}

// NewWriter returns a Writer using the default (900,000-byte) block size.
func NewWriter(w io.Writer) *Writer { return NewWriterLevel(w, defaultBlockSize100k) }

// NewWriterLevel returns a Writer whose block size is level*100,000 bytes
// (level must be 1-9, as in the reference bzip2 -1..-9 flags).
func NewWriterLevel(w io.Writer, level int) *Writer {
	if level < 1 || level > 9 {
		level = defaultBlockSize100k
	}
	return &Writer{bw: bitio.NewMSBWriter(w), level: level, blockSize: level * 100 * 1000}
}

func (z *Writer) writeHeader() {
	WriteStreamHeader(z.bw, z.level)
	z.wroteHeader = true
}

// Write buffers p, flushing full blocks as they accumulate.
func (z *Writer) Write(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	if !z.wroteHeader {
		z.writeHeader()
	}
	n := len(p)
	for len(p) > 0 {
		room := z.blockSize - len(z.buf)
		take := len(p)
		if take > room {
			take = room
		}
		z.buf = append(z.buf, p[:take]...)
		p = p[take:]
		if len(z.buf) == z.blockSize {
			if err := z.flushBlock(); err != nil {
				z.err = err
				return n - len(p), err
			}
		}
	}
	return n, nil
}

func (z *Writer) flushBlock() error {
	if len(z.buf) == 0 {
		return nil
	}
	crc, err := encodeBlock(z.bw, z.buf)
	if err != nil {
		return err
	}
	z.fileCRC = CombineBlockCRC(z.fileCRC, crc)
	z.buf = z.buf[:0]
	return z.bw.Err()
}

// Close flushes any buffered data and writes the stream trailer. It does
// not close the underlying writer.
func (z *Writer) Close() error {
	if z.err != nil {
		return z.err
	}
	if !z.wroteHeader {
		z.writeHeader()
	}
	if err := z.flushBlock(); err != nil {
		return err
	}
	WriteStreamTrailer(z.bw, z.fileCRC)
	return z.bw.Flush()
}

// encodeBlock writes one compressed block (RLE1, BWT, MTF+RLE2, multi-table
// Huffman) to bw, preceded by its magic and block CRC, and returns that CRC
// so the caller can fold it into the stream-level combined checksum.
func encodeBlock(bw *bitio.MSBWriter, raw []byte) (uint32, error) {
	rle1 := rle1Encode(raw)
	if len(rle1) == 0 {
		return 0, nil
	}
	transformed, origPtr := bwtForward(rle1)

	symbolUsed := [256]bool{}
	for _, b := range transformed {
		symbolUsed[b] = true
	}
	var symbols []byte
	for i := 0; i < 256; i++ {
		if symbolUsed[i] {
			symbols = append(symbols, byte(i))
		}
	}
	mtf := newMoveToFront(symbols)

	mtfSyms, numSymbols := mtfEncode(mtf, transformed)
	alphabetSize := numSymbols + 2
	tableCount := clampInt(len(mtfSyms)/50, 2, 6)

	groups := groupSelectors(len(mtfSyms), tableCount)
	freqs := make([][]int, tableCount)
	for i := range freqs {
		freqs[i] = make([]int, alphabetSize)
	}
	for i, sym := range mtfSyms {
		g := groups[i]
		freqs[g][sym]++
	}

	// Every table must carry a valid code for the full alphabet, even
	// symbols this table's 50-symbol groups never actually used: the
	// selector stream can route any group to any table. Padding unused
	// symbols to a frequency of 1 keeps the Huffman merge a complete tree
	// over the whole alphabet instead of leaving gaps BuildCanonicalLengths
	// would otherwise assign a length of 0 (code length of 0 = "unused"),
	// which the decoder's table would then reject as incomplete.
	lengths := make([][]uint8, tableCount)
	encTables := make([]*huffman.EncodeTable, tableCount)
	for i := range lengths {
		padded := make([]int, alphabetSize)
		for j, f := range freqs[i] {
			if f == 0 {
				padded[j] = 1
			} else {
				padded[j] = f
			}
		}
		lengths[i] = huffman.BuildCanonicalLengths(padded, 20)
		encTables[i] = huffman.NewEncodeTable(lengths[i])
	}

	var crc blockCRC
	crc.update(raw)

	bw.WriteBits(blockMagic>>24, 24)
	bw.WriteBits(blockMagic&0xffffff, 24)
	bw.WriteBits(crc.val, 32)
	bw.WriteBits(0, 1) // not randomized
	bw.WriteBits(uint32(origPtr), 24)

	writeSymbolBitmap(bw, symbolUsed[:])

	bw.WriteBits(uint32(tableCount), 3)
	numSelectors := (len(groups) + 49) / 50
	bw.WriteBits(uint32(numSelectors), 15)
	writeSelectors(bw, groups, tableCount)

	for i := range lengths {
		writeLengthDeltas(bw, lengths[i])
	}

	writeSymbolStream(bw, mtfSyms, groups, encTables)
	return crc.val, bw.Err()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mtfEncode applies move-to-front plus bijective base-2 zero-run coding to
// the post-BWT byte stream, returning the metasymbol stream (RUNA=0,
// RUNB=1, real-symbol index+1, terminated implicitly by the caller writing
// the EOB symbol) and the count of real (non-meta) symbols.
func mtfEncode(mtf *moveToFront, transformed []byte) ([]int, int) {
	var out []int
	zeroRun := 0
	flushZeroRun := func() {
		n := zeroRun
		for n > 0 {
			n--
			out = append(out, n&1)
			n >>= 1
		}
		zeroRun = 0
	}
	for _, b := range transformed {
		rank := mtf.Encode(b)
		if rank == 0 {
			zeroRun++
			continue
		}
		flushZeroRun()
		out = append(out, rank+1)
	}
	flushZeroRun()
	out = append(out, len(mtf.list)+1) // EOB
	return out, len(mtf.list)
}

// groupSelectors assigns each consecutive 50-symbol group a Huffman table
// index round-robin. Selector assignment by iterative cost refinement
// (as the reference encoder does) is not implemented; this keeps encoding
// straightforward at the cost of compression ratio, a deliberate scope
// decision the table-count heuristic alone does not mandate.
func groupSelectors(numSymbols, tableCount int) []int {
	numGroups := (numSymbols + 49) / 50
	sel := make([]int, numGroups)
	groups := make([]int, numSymbols)
	for g := 0; g < numGroups; g++ {
		sel[g] = g % tableCount
		start := g * 50
		end := start + 50
		if end > numSymbols {
			end = numSymbols
		}
		for i := start; i < end; i++ {
			groups[i] = sel[g]
		}
	}
	return groups
}

func writeSymbolBitmap(bw *bitio.MSBWriter, used []bool) {
	var rangeUsed uint32
	var rangeBits [16]uint32
	for symRange := 0; symRange < 16; symRange++ {
		var bits uint32
		for sym := 0; sym < 16; sym++ {
			if used[16*symRange+sym] {
				bits |= 1 << uint(15-sym)
			}
		}
		if bits != 0 {
			rangeUsed |= 1 << uint(15-symRange)
			rangeBits[symRange] = bits
		}
	}
	bw.WriteBits(rangeUsed, 16)
	for symRange := 0; symRange < 16; symRange++ {
		if rangeUsed&(1<<uint(15-symRange)) != 0 {
			bw.WriteBits(rangeBits[symRange], 16)
		}
	}
}

func writeSelectors(bw *bitio.MSBWriter, groups []int, tableCount int) {
	numGroups := 0
	if len(groups) > 0 {
		numGroups = (len(groups) + 49) / 50
	}
	mtf := newMoveToFrontRange(tableCount)
	for g := 0; g < numGroups; g++ {
		sel := groups[g*50]
		rank := mtf.Encode(byte(sel))
		for i := 0; i < rank; i++ {
			bw.WriteBits(1, 1)
		}
		bw.WriteBits(0, 1)
	}
}

func writeLengthDeltas(bw *bitio.MSBWriter, lengths []uint8) {
	length := int(lengths[0])
	bw.WriteBits(uint32(length), 5)
	for _, l := range lengths {
		for length < int(l) {
			bw.WriteBits(1, 1)
			bw.WriteBits(0, 1)
			length++
		}
		for length > int(l) {
			bw.WriteBits(1, 1)
			bw.WriteBits(1, 1)
			length--
		}
		bw.WriteBits(0, 1)
	}
}

func writeSymbolStream(bw *bitio.MSBWriter, mtfSyms, groups []int, tables []*huffman.EncodeTable) {
	for i, sym := range mtfSyms {
		tables[groups[i]].WriteMSB(bw, sym)
	}
}

// EncodeBlock writes one compressed block to bw and returns its CRC. Used
// by bzip2/parallel: each worker encodes its chunk into its own buffer
// concurrently, and the blocks are then bit-stitched into a single stream.
func EncodeBlock(bw *bitio.MSBWriter, raw []byte) (uint32, error) {
	return encodeBlock(bw, raw)
}

// Encode compresses data into a complete bzip2 stream held in memory.
func Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
