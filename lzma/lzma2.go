package lzma

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/ring"
)

// LZMA2 control-byte layout (§4.7 closing note):
//
//	0x00            end of stream
//	0x01            uncompressed chunk, reset dictionary
//	0x02            uncompressed chunk, no reset
//	0x80-0xFF       LZMA chunk; bits 5-6 select the reset mode, bits 0-4 are
//	                the top 5 bits of (uncompressed size - 1)
//
// An LZMA chunk's control byte is followed by a 2-byte big-endian
// (unpacked size - 1), a 2-byte big-endian (packed size - 1), an optional
// 1-byte properties field (present when the reset mode requires new
// properties), and finally the packed-size bytes of raw range-coder data.
const (
	lzma2CtrlEOS              = 0x00
	lzma2CtrlUncompressedReset = 0x01
	lzma2CtrlUncompressedKeep  = 0x02
	lzma2CtrlLZMAMask          = 0x80
)

// LZMA chunk reset modes, packed into control bits 5-6.
const (
	resetNone          = 0 // no reset: continue state, probs, dict, props
	resetState         = 1 // reset state and probs, keep dict and props
	resetStateAndProps = 2 // reset state, probs and read new properties byte
	resetStateFull     = 3 // like resetStateAndProps, and also reset dictionary
)

// ChunkState carries the running LZMA decoder state across chunk
// boundaries for a stream whose chunks declare resetNone or resetState:
// the probability model, the 12-state machine position and the four rep
// distances survive from one DecodeWithLimit call to the next.
type ChunkState struct {
	probs *probs
	state int
	rep0, rep1, rep2, rep3 uint32
	pos uint32
}

// NewChunkState returns a freshly reset ChunkState for props, as used at
// stream start and whenever a chunk's reset mode includes a state reset.
func NewChunkState(props Properties) *ChunkState {
	return &ChunkState{probs: newProbs(props)}
}

// reset reinitializes the probability model and state machine, used by
// resetState and stronger reset modes.
func (s *ChunkState) reset(props Properties) {
	s.probs = newProbs(props)
	s.state = 0
	s.rep0, s.rep1, s.rep2, s.rep3 = 0, 0, 0, 0
	s.pos = 0
}

// DecodeLZMA2 decompresses a complete LZMA2 chunk stream (no lzma-alone
// header; LZMA2 carries its own properties and dictionary size out of
// band, per 7-Zip's .xz/.7z container conventions). dictSize sizes the
// backing ring.Buffer.
func DecodeLZMA2(data []byte, dictSize uint32) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	dict := ring.New(dictCapacity(dictSize))

	var (
		out   []byte
		st    *ChunkState
		props Properties
		have  bool // whether props/st have been established by a prior chunk
	)

	for {
		ctrl, err := r.ReadByte()
		if err != nil {
			return nil, &errs.UnexpectedEof{Expected: "lzma2 control byte"}
		}
		if ctrl == lzma2CtrlEOS {
			return out, nil
		}

		switch {
		case ctrl == lzma2CtrlUncompressedReset || ctrl == lzma2CtrlUncompressedKeep:
			if ctrl == lzma2CtrlUncompressedReset {
				dict.Reset()
			}
			size, err := readUint16Plus1(r)
			if err != nil {
				return nil, err
			}
			chunk := make([]byte, size)
			if _, err := io.ReadFull(r, chunk); err != nil {
				return nil, &errs.UnexpectedEof{Expected: "lzma2 uncompressed chunk"}
			}
			if _, err := dict.Write(chunk); err != nil {
				return nil, err
			}
			out = append(out, chunk...)

		case ctrl&lzma2CtrlLZMAMask != 0:
			unpackedSize := (int(ctrl&0x1f) << 16)
			n, err := readUint16Plus1(r)
			if err != nil {
				return nil, err
			}
			unpackedSize += n
			packedSize, err := readUint16Plus1(r)
			if err != nil {
				return nil, err
			}

			resetMode := int(ctrl>>5) & 0x3
			switch resetMode {
			case resetStateFull:
				dict.Reset()
				fallthrough
			case resetStateAndProps:
				b, err := r.ReadByte()
				if err != nil {
					return nil, &errs.UnexpectedEof{Expected: "lzma2 properties byte"}
				}
				props, err = propertiesFromByte(b)
				if err != nil {
					return nil, err
				}
				st = NewChunkState(props)
				have = true
			case resetState:
				if !have {
					return nil, &errs.CorruptedData{Message: "lzma2: state reset before properties were ever set"}
				}
				st.reset(props)
			case resetNone:
				if !have {
					return nil, &errs.CorruptedData{Message: "lzma2: first chunk must set properties"}
				}
			}

			chunkData := make([]byte, packedSize)
			if _, err := io.ReadFull(r, chunkData); err != nil {
				return nil, &errs.UnexpectedEof{Expected: "lzma2 compressed chunk"}
			}
			produced, err := DecodeWithLimit(bytes.NewReader(chunkData), props, dict, st, unpackedSize)
			if err != nil {
				return nil, err
			}
			out = append(out, produced...)

		default:
			return nil, &errs.CorruptedData{Message: "lzma2: invalid control byte"}
		}
	}
}

func readUint16Plus1(r io.Reader) (int, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, &errs.UnexpectedEof{Expected: "lzma2 size field"}
	}
	return int(binary.BigEndian.Uint16(buf[:])) + 1, nil
}

func writeUint16Minus1(w io.Writer, n int) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(n-1))
	_, err := w.Write(buf[:])
	return err
}
