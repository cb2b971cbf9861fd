package lz4

import (
	"encoding/binary"

	"github.com/nyquistlabs/archivekit/checksum"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/ring"
)

const (
	frameMagic   = 0x184D2204
	endMark      = 0x00000000
	blockSizeFlag = 1 << 31 // high bit of a block's 4-byte length: uncompressed
)

// FrameOptions controls frame-level framing this package writes; all are
// optional per the LZ4 frame format.
type FrameOptions struct {
	ContentChecksum bool
	ContentSize     bool
	BlockMaxSize    int // defaults to 4<<20 (block size id 7, "4MB") if zero
}

// windowCapForBlockSize rounds a block size up to a ring-buffer-legal power
// of two; LZ4 frames reset their match window at each block boundary only
// when independent blocks are in use, but this decoder always carries the
// window across blocks within one frame (the more general, always-correct
// choice: linked-block frames require it, and it is harmless for
// independent-block frames too since offsets never exceed one block).
func windowCapForBlockSize(blockMaxSize int) int {
	capacity := 1024
	for capacity < blockMaxSize {
		capacity <<= 1
	}
	return capacity
}

// Decode decompresses an LZ4 frame (§4.9 "LZ4 frame"): magic, frame
// descriptor, optional content size, a sequence of data blocks (a block
// whose 4-byte length has the high bit set is stored uncompressed), the
// 0x00000000 end mark, and an optional trailing xxHash32 content checksum.
func Decode(data []byte) ([]byte, error) {
	if len(data) < 4 || binary.LittleEndian.Uint32(data[0:4]) != frameMagic {
		return nil, &errs.InvalidMagic{Expected: []byte{0x04, 0x22, 0x4D, 0x18}, Found: data[:min(4, len(data))]}
	}
	pos := 4
	if pos+2 > len(data) {
		return nil, &errs.UnexpectedEof{Expected: "lz4 frame descriptor"}
	}
	flg := data[pos]
	bd := data[pos+1]
	pos += 2

	version := (flg >> 6) & 0x3
	if version != 1 {
		return nil, &errs.UnsupportedMethod{Name: "lz4 frame version"}
	}
	hasContentSize := flg&0x8 != 0
	hasContentChecksum := flg&0x4 != 0
	hasDictID := flg&0x1 != 0

	blockMaxSizeID := (bd >> 4) & 0x7
	blockMaxSize := blockMaxSizeForID(blockMaxSizeID)

	var contentSize uint64
	if hasContentSize {
		if pos+8 > len(data) {
			return nil, &errs.UnexpectedEof{Expected: "lz4 content size"}
		}
		contentSize = binary.LittleEndian.Uint64(data[pos : pos+8])
		pos += 8
	}
	if hasDictID {
		if pos+4 > len(data) {
			return nil, &errs.UnexpectedEof{Expected: "lz4 dictionary id"}
		}
		pos += 4
	}
	// Header checksum byte, always present.
	if pos+1 > len(data) {
		return nil, &errs.UnexpectedEof{Expected: "lz4 header checksum"}
	}
	pos++

	dict := ring.New(windowCapForBlockSize(blockMaxSize))
	var out []byte
	for {
		if pos+4 > len(data) {
			return nil, &errs.UnexpectedEof{Expected: "lz4 block size"}
		}
		blockField := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4
		if blockField == endMark {
			break
		}
		uncompressed := blockField&blockSizeFlag != 0
		blockLen := int(blockField &^ blockSizeFlag)
		if pos+blockLen > len(data) {
			return nil, &errs.UnexpectedEof{Expected: "lz4 block body"}
		}
		body := data[pos : pos+blockLen]
		pos += blockLen

		if uncompressed {
			out = append(out, body...)
			if _, err := dict.Write(body); err != nil {
				return nil, err
			}
		} else {
			decoded, err := DecodeBlock(body, dict)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded...)
		}
	}

	if hasContentSize && uint64(len(out)) != contentSize {
		return nil, &errs.CorruptedData{Message: "lz4: decompressed size does not match frame content size"}
	}
	if hasContentChecksum {
		if pos+4 > len(data) {
			return nil, &errs.UnexpectedEof{Expected: "lz4 content checksum"}
		}
		want := binary.LittleEndian.Uint32(data[pos : pos+4])
		got := checksum.XXHash32(0, out)
		if got != want {
			return nil, &errs.CrcMismatch{Expected: uint64(want), Computed: uint64(got)}
		}
	}
	return out, nil
}

func blockMaxSizeForID(id byte) int {
	switch id {
	case 4:
		return 64 << 10
	case 5:
		return 256 << 10
	case 6:
		return 1 << 20
	case 7:
		return 4 << 20
	default:
		return 4 << 20
	}
}

// Encode wraps data in an LZ4 frame, splitting it into BlockMaxSize chunks
// (default 4MB), each compressed at the given level: level 1 uses the fast
// encoder, levels 2 and up the HC encoder, and 0 or below disables
// compression for that block, storing it raw instead.
func Encode(data []byte, level int, opts FrameOptions) []byte {
	blockMaxSize := opts.BlockMaxSize
	if blockMaxSize <= 0 {
		blockMaxSize = 4 << 20
	}
	var out []byte
	var magicBytes [4]byte
	binary.LittleEndian.PutUint32(magicBytes[:], frameMagic)
	out = append(out, magicBytes[:]...)

	var flg byte = 1 << 6 // version 1
	if opts.ContentChecksum {
		flg |= 0x4
	}
	if opts.ContentSize {
		flg |= 0x8
	}
	bd := blockMaxSizeIDFor(blockMaxSize) << 4
	out = append(out, flg, bd)

	if opts.ContentSize {
		var sz [8]byte
		binary.LittleEndian.PutUint64(sz[:], uint64(len(data)))
		out = append(out, sz[:]...)
	}
	hc := checksum.XXHash32(0, out[4:])
	out = append(out, byte(hc>>8))

	for pos := 0; pos < len(data); {
		end := pos + blockMaxSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[pos:end]

		var body []byte
		uncompressed := level <= 0
		if !uncompressed {
			if level == 1 {
				body = EncodeBlockFast(chunk)
			} else {
				body = EncodeBlockHC(chunk, level)
			}
			if len(body) >= len(chunk) {
				uncompressed = true
			}
		}
		if uncompressed {
			body = chunk
		}

		var lenField [4]byte
		v := uint32(len(body))
		if uncompressed {
			v |= blockSizeFlag
		}
		binary.LittleEndian.PutUint32(lenField[:], v)
		out = append(out, lenField[:]...)
		out = append(out, body...)

		pos = end
	}

	var end4 [4]byte
	out = append(out, end4[:]...)

	if opts.ContentChecksum {
		sum := checksum.XXHash32(0, data)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], sum)
		out = append(out, b[:]...)
	}
	return out
}

func blockMaxSizeIDFor(size int) byte {
	switch {
	case size <= 64<<10:
		return 4
	case size <= 256<<10:
		return 5
	case size <= 1<<20:
		return 6
	default:
		return 7
	}
}
