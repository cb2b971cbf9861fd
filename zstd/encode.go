package zstd

import "github.com/nyquistlabs/archivekit/checksum"

// Encoder produces valid Zstandard frames using only raw and RLE blocks
// (§6 open question: this package has no LZ77 match finder or entropy
// coder of its own, so it never emits compressed blocks). Output is always
// decodable by any conforming Zstandard decoder, just not as small as a
// real compressor's.
type Encoder struct {
	Checksum bool
}

// CompressionSupported reports whether this encoder can produce entropy- or
// match-coded blocks. It always returns false; callers that need an actual
// compression ratio should reach for deflate/lzma/bzip2 instead.
func (e *Encoder) CompressionSupported() bool { return false }

const rleChunkSize = 16

// Encode wraps data in a single Zstandard frame, splitting it into raw and
// RLE blocks: any run of rleChunkSize identical bytes becomes an RLE block,
// everything else is emitted as raw blocks up to maxBlockSize.
func Encode(data []byte, e *Encoder) []byte {
	if e == nil {
		e = &Encoder{}
	}
	var out []byte
	magic := uint32(magicNumber)
	out = append(out, byte(magic), byte(magic>>8), byte(magic>>16), byte(magic>>24))

	descriptor := byte(0x20) // single_segment
	if e.Checksum {
		descriptor |= 0x4
	}
	// Frame_Content_Size_flag = 3: always emit the 8-byte exact size, the
	// simplest unambiguous choice for an encoder that never guesses.
	descriptor |= 0x3 << 6
	out = append(out, descriptor)

	var fcs [8]byte
	n := uint64(len(data))
	for i := range fcs {
		fcs[i] = byte(n >> (8 * i))
	}
	out = append(out, fcs[:]...)

	if len(data) == 0 {
		// An empty frame still needs exactly one block, marked last.
		out = append(out, byte(0x1), 0, 0)
	}

	pos := 0
	for pos < len(data) {
		runLen := runLength(data[pos:])
		var blockType uint32
		var payload []byte
		var size int

		if runLen >= rleChunkSize {
			blockType = blockRLE
			payload = data[pos : pos+1]
			size = runLen
			pos += runLen
		} else {
			chunk := len(data) - pos
			if chunk > maxBlockSize {
				chunk = maxBlockSize
			}
			// Stop the raw chunk early if a long run starts inside it, so
			// the next iteration can emit it as RLE instead.
			if next := nextRunStart(data[pos:pos+chunk], rleChunkSize); next > 0 {
				chunk = next
			}
			blockType = blockRaw
			payload = data[pos : pos+chunk]
			size = chunk
			pos += chunk
		}

		last := pos >= len(data)
		header := uint32(0)
		if last {
			header |= 0x1
		}
		header |= blockType << 1
		header |= uint32(size) << 3
		out = append(out, byte(header), byte(header>>8), byte(header>>16))
		out = append(out, payload...)
	}

	if e.Checksum {
		sum := checksum.XXHash64(0, data)
		var b [4]byte
		b[0] = byte(sum)
		b[1] = byte(sum >> 8)
		b[2] = byte(sum >> 16)
		b[3] = byte(sum >> 24)
		out = append(out, b[:]...)
	}
	return out
}

// runLength returns the length of the run of identical bytes at the start
// of b (capped at maxBlockSize, since that is the longest a single RLE
// block can express via this package's 8-byte exact-size framing).
func runLength(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := 1
	for n < len(b) && n < maxBlockSize && b[n] == b[0] {
		n++
	}
	return n
}

// nextRunStart returns the offset of the first run of at least minRun
// identical bytes within b, or -1 if there is none.
func nextRunStart(b []byte, minRun int) int {
	i := 0
	for i < len(b) {
		n := runLength(b[i:])
		if n >= minRun {
			return i
		}
		i += n
	}
	return -1
}
