// Package lzma implements LZMA and LZMA2 decompression and compression
// (§4.7): the "lzma-alone" header, the 12-state literal/match/rep
// machine driving the range coder in rangecoder, and the LZMA2 chunk
// container on top. Built alongside rangecoder, and shares ring for the
// circular match-history dictionary DEFLATE/LZ4/LZH also use.
package lzma

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/rangecoder"
)

const (
	numStates   = 12
	numPosBitsMax = 4
	numLenToPosStates = 4
	numFullDistances = 1 << 7
	endPosModelIndex = 14
	numAlignBits = 4
	matchMinLen = 2

	lenLowBits  = 3
	lenMidBits  = 3
	lenHighBits = 8
	lenLowSym   = 1 << lenLowBits
	lenMidSym   = 1 << lenMidBits
	lenHighSym  = 1 << lenHighBits
)

// literalNextState maps the current state to the state following a decoded
// literal byte, per §4.7's state machine table.
var literalNextState = [numStates]int{0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 4, 5}

func matchNextState(state int) int {
	if state < 7 {
		return 7
	}
	return 10
}

func repNextState(state int) int {
	if state < 7 {
		return 8
	}
	return 11
}

func shortRepNextState(state int) int {
	if state < 7 {
		return 9
	}
	return 11
}

// Properties holds the three LZMA coder parameters packed into the
// lzma-alone header's single properties byte (pb·45 + lp·9 + lc).
type Properties struct {
	LC, LP, PB int
}

// DefaultProperties returns the conventional lc=3, lp=0, pb=2 used by
// virtually every LZMA encoder when no properties are specified.
func DefaultProperties() Properties { return Properties{LC: 3, LP: 0, PB: 2} }

func (p Properties) byte() byte { return byte(p.PB*45 + p.LP*9 + p.LC) }

func propertiesFromByte(b byte) (Properties, error) {
	if b >= 9*5*5 {
		return Properties{}, &errs.InvalidHeader{Message: "lzma: properties byte out of range"}
	}
	lc := int(b) % 9
	rest := int(b) / 9
	lp := rest % 5
	pb := rest / 5
	return Properties{LC: lc, LP: lp, PB: pb}, nil
}

// lenCoder is the shared shape of LZMA's two length decoders (match length
// and rep length): a choice bit selects low (3-bit tree + 2) vs. a second
// choice bit between mid (3-bit tree + 10) and high (8-bit tree + 18).
type lenCoder struct {
	choice, choice2 rangecoder.Prob
	low, mid        [][]rangecoder.Prob // indexed by posState
	high            []rangecoder.Prob
}

func newLenCoder(numPosStates int) *lenCoder {
	lc := &lenCoder{
		choice:  rangecoder.NewProbs(1)[0],
		choice2: rangecoder.NewProbs(1)[0],
		low:     make([][]rangecoder.Prob, numPosStates),
		mid:     make([][]rangecoder.Prob, numPosStates),
		high:    rangecoder.NewProbs(lenHighSym),
	}
	for i := 0; i < numPosStates; i++ {
		lc.low[i] = rangecoder.NewProbs(lenLowSym)
		lc.mid[i] = rangecoder.NewProbs(lenMidSym)
	}
	return lc
}

// probs bundles every adaptive probability table the symbol loop needs, so
// Decoder and Encoder can share identical layout/reset logic.
type probs struct {
	isMatch     [numStates][]rangecoder.Prob // indexed by posState
	isRep       [numStates]rangecoder.Prob
	isRepG0     [numStates]rangecoder.Prob
	isRepG1     [numStates]rangecoder.Prob
	isRepG2     [numStates]rangecoder.Prob
	isRep0Long  [numStates][]rangecoder.Prob // indexed by posState

	posSlot    [numLenToPosStates][]rangecoder.Prob // 6-bit trees
	posDecoders []rangecoder.Prob
	align      []rangecoder.Prob

	literal [][]rangecoder.Prob // [context][0x300]

	lenCoder, repLenCoder *lenCoder
}

func newProbs(props Properties) *probs {
	numPosStates := 1 << props.PB
	p := &probs{
		posDecoders: rangecoder.NewProbs(numFullDistances - endPosModelIndex),
		align:       rangecoder.NewProbs(1 << numAlignBits),
		lenCoder:    newLenCoder(numPosStates),
		repLenCoder: newLenCoder(numPosStates),
	}
	for i := 0; i < numStates; i++ {
		p.isMatch[i] = rangecoder.NewProbs(numPosStates)
		p.isRep[i] = rangecoder.NewProbs(1)[0]
		p.isRepG0[i] = rangecoder.NewProbs(1)[0]
		p.isRepG1[i] = rangecoder.NewProbs(1)[0]
		p.isRepG2[i] = rangecoder.NewProbs(1)[0]
		p.isRep0Long[i] = rangecoder.NewProbs(numPosStates)
	}
	for i := range p.posSlot {
		p.posSlot[i] = rangecoder.NewProbs(1 << 6)
	}
	numLiteralContexts := 1 << uint(props.LC+props.LP)
	p.literal = make([][]rangecoder.Prob, numLiteralContexts)
	for i := range p.literal {
		p.literal[i] = rangecoder.NewProbs(0x300)
	}
	return p
}

func literalContext(props Properties, pos uint32, prevByte byte) int {
	posMask := uint32(1<<uint(props.LP)) - 1
	return int(((pos & posMask) << uint(props.LC)) | uint32(prevByte>>uint(8-props.LC)))
}

// posSlotToDistance derives the distance base/extra-bits structure
// §4.7 describes ("slot<4 => distance=slot; else num_direct=(slot>>1)-1,
// base=(2|(slot&1))<<num_direct; ...") common to both decode and encode.
func posSlotToDistance(slot int) (base uint32, numDirectBits uint) {
	if slot < 4 {
		return uint32(slot), 0
	}
	numDirectBits = uint(slot>>1) - 1
	base = uint32(2|(slot&1)) << numDirectBits
	return base, numDirectBits
}

// distanceToPosSlot is posSlotToDistance's inverse, used by the encoder to
// pick which 6-bit slot symbol to emit for a given match distance.
func distanceToPosSlot(dist uint32) int {
	if dist < 4 {
		return int(dist)
	}
	n := 31 - bits.LeadingZeros32(dist)
	slot := n << 1
	if (dist>>uint(n-1))&1 != 0 {
		slot++
	}
	return slot
}

func lenToLenState(length int) int {
	s := length - matchMinLen
	if s > numLenToPosStates-1 {
		s = numLenToPosStates - 1
	}
	return s
}

// Header is the parsed lzma-alone header (§4.7): one properties byte,
// a little-endian 32-bit dictionary size, and a little-endian 64-bit
// uncompressed size (UnpackedSizeUnknown marks an end-of-stream-terminated
// stream instead of a known length).
type Header struct {
	Properties    Properties
	DictSize      uint32
	UnpackedSize  uint64
}

// UnpackedSizeUnknown is the lzma-alone header's "size not recorded" marker
// (all-ones 64-bit field); such a stream is terminated by the distance
// 0xFFFFFFFF end marker instead.
const UnpackedSizeUnknown = ^uint64(0)

// ReadHeader parses a 13-byte lzma-alone header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [13]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, &errs.UnexpectedEof{Expected: "lzma header"}
	}
	props, err := propertiesFromByte(buf[0])
	if err != nil {
		return Header{}, err
	}
	return Header{
		Properties:   props,
		DictSize:     binary.LittleEndian.Uint32(buf[1:5]),
		UnpackedSize: binary.LittleEndian.Uint64(buf[5:13]),
	}, nil
}

// WriteHeader writes a 13-byte lzma-alone header to w.
func WriteHeader(w io.Writer, h Header) error {
	var buf [13]byte
	buf[0] = h.Properties.byte()
	binary.LittleEndian.PutUint32(buf[1:5], h.DictSize)
	binary.LittleEndian.PutUint64(buf[5:13], h.UnpackedSize)
	_, err := w.Write(buf[:])
	return err
}

// dictCapacity rounds a declared dictionary size up to the next power of
// two so it can back a ring.Buffer, which requires one. Real encoders
// already normalize dictionary sizes this way (7-Zip's LZMA properties
// only ever declare 2^n or 3*2^n-ish sizes); rounding up is a safe
// superset that never rejects a valid distance.
func dictCapacity(size uint32) int {
	if size < 4096 {
		size = 4096
	}
	c := 1
	for uint32(c) < size {
		c <<= 1
	}
	return c
}
