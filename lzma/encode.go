package lzma

import (
	"bytes"

	"github.com/nyquistlabs/archivekit/rangecoder"
	"github.com/nyquistlabs/archivekit/ring"
)

// maxMatchLen is the longest match length the length coder can express:
// matchMinLen (2) plus the low/mid/high symbol ranges (8+8+256), minus one.
const maxMatchLen = matchMinLen + lenLowSym + lenMidSym + lenHighSym - 1

const (
	hashBits      = 16
	hashSize      = 1 << hashBits
	maxChainTries = 64
)

// encoder mirrors decoder's state machine exactly, in the opposite
// direction: it drives the same is_match/is_rep/.../literal probability
// tree with rangecoder.Encoder instead of rangecoder.Decoder, so that any
// sequence of encode decisions it makes is guaranteed decodable by decoder.
//
// Match finding is a single-pass greedy hash-chain search (not the
// optimal-parse, bit-price-table approach real LZMA encoders use): cheap
// enough to reason about by hand, and a greedy parser still round-trips
// bit-identically, which is what decode correctness actually requires.
type encoder struct {
	rc    *rangecoder.Encoder
	p     *probs
	props Properties
	dict  *ring.Buffer

	state                  int
	rep0, rep1, rep2, rep3 uint32
	pos                    uint32
}

func newEncoder(rc *rangecoder.Encoder, props Properties, dict *ring.Buffer) *encoder {
	return &encoder{rc: rc, p: newProbs(props), props: props, dict: dict}
}

func hash3(p []byte, i int) uint32 {
	v := uint32(p[i])<<16 | uint32(p[i+1])<<8 | uint32(p[i+2])
	return (v * 2654435761) >> (32 - hashBits)
}

func matchLenAt(p []byte, a, b, max int) int {
	n := len(p)
	l := 0
	for b+l < n && l < max && p[a+l] == p[b+l] {
		l++
	}
	return l
}

// run LZ-parses p and encodes every literal/match/rep decision, writing
// each produced byte into dict so later matched-literal and rep lookups
// see the same history decode would reconstruct.
func (e *encoder) run(p []byte) error {
	n := len(p)
	head := make([]int32, hashSize)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int32, n)
	insert := func(i int) {
		if i+3 > n {
			return
		}
		h := hash3(p, i)
		prev[i] = head[h]
		head[h] = int32(i)
	}

	posMask := uint32(1<<uint(e.props.PB)) - 1
	i := 0
	for i < n {
		posState := e.pos & posMask

		reps := [4]uint32{e.rep0, e.rep1, e.rep2, e.rep3}
		bestRepIdx, bestRepLen := -1, 0
		for k, r := range reps {
			dist := int(r) + 1
			if i-dist < 0 {
				continue
			}
			l := matchLenAt(p, i-dist, i, maxMatchLen)
			if l > bestRepLen {
				bestRepLen, bestRepIdx = l, k
			}
		}

		bestLen, bestDist := 0, 0
		if i+3 <= n {
			cand := head[hash3(p, i)]
			tries := 0
			for cand >= 0 && tries < maxChainTries {
				dist := i - int(cand)
				l := matchLenAt(p, int(cand), i, maxMatchLen)
				if l > bestLen {
					bestLen, bestDist = l, dist
				}
				cand = prev[cand]
				tries++
			}
		}

		// A rep match costs far fewer bits than a normal match of the same
		// length, so prefer it unless the normal match is clearly longer.
		useRep := bestRepIdx >= 0 && bestRepLen >= 2 && bestRepLen+1 >= bestLen
		var length int

		switch {
		case useRep:
			e.rc.EncodeBit(&e.p.isMatch[e.state][posState], 1)
			e.rc.EncodeBit(&e.p.isRep[e.state], 1)
			switch bestRepIdx {
			case 0:
				e.rc.EncodeBit(&e.p.isRepG0[e.state], 0)
				e.rc.EncodeBit(&e.p.isRep0Long[e.state][posState], 1)
			case 1:
				e.rc.EncodeBit(&e.p.isRepG0[e.state], 1)
				e.rc.EncodeBit(&e.p.isRepG1[e.state], 0)
				e.rep1 = e.rep0
				e.rep0 = reps[1]
			case 2:
				e.rc.EncodeBit(&e.p.isRepG0[e.state], 1)
				e.rc.EncodeBit(&e.p.isRepG1[e.state], 1)
				e.rc.EncodeBit(&e.p.isRepG2[e.state], 0)
				e.rep2, e.rep1 = e.rep1, e.rep0
				e.rep0 = reps[2]
			case 3:
				e.rc.EncodeBit(&e.p.isRepG0[e.state], 1)
				e.rc.EncodeBit(&e.p.isRepG1[e.state], 1)
				e.rc.EncodeBit(&e.p.isRepG2[e.state], 1)
				e.rep3, e.rep2, e.rep1 = e.rep2, e.rep1, e.rep0
				e.rep0 = reps[3]
			}
			e.state = repNextState(e.state)
			length = bestRepLen
			e.encodeLen(e.p.repLenCoder, posState, length)

		case bestLen >= 2:
			e.rc.EncodeBit(&e.p.isMatch[e.state][posState], 1)
			e.rc.EncodeBit(&e.p.isRep[e.state], 0)
			e.rep3, e.rep2, e.rep1 = e.rep2, e.rep1, e.rep0
			e.rep0 = uint32(bestDist - 1)
			length = bestLen
			e.encodeLen(e.p.lenCoder, posState, length)
			e.encodeDistance(length, e.rep0)
			e.state = matchNextState(e.state)

		default:
			e.rc.EncodeBit(&e.p.isMatch[e.state][posState], 0)
			e.encodeLiteral(p[i])
			e.state = literalNextState[e.state]
			insert(i)
			e.dict.WriteByte(p[i])
			e.pos++
			i++
			continue
		}

		e.dict.Write(p[i : i+length])
		for j := i; j < i+length; j++ {
			insert(j)
		}
		e.pos += uint32(length)
		i += length
	}
	return e.rc.Err()
}

func (e *encoder) encodeLiteral(b byte) {
	var prevByte byte
	if e.dict.Len() > 0 {
		prevByte = e.dict.ByteAt(1)
	}
	ctx := literalContext(e.props, e.pos, prevByte)
	probs := e.p.literal[ctx]

	shifted := b
	var symbol uint32 = 1
	if e.state >= 7 {
		matchByte := e.dict.ByteAt(int(e.rep0) + 1)
		for symbol < 0x100 {
			matchBit := uint32(matchByte>>7) & 1
			matchByte <<= 1
			bit := uint32(shifted>>7) & 1
			shifted <<= 1
			e.rc.EncodeBit(&probs[((1+matchBit)<<8)+symbol], bit)
			symbol = (symbol << 1) | bit
			if matchBit != bit {
				break
			}
		}
	}
	for symbol < 0x100 {
		bit := uint32(shifted>>7) & 1
		shifted <<= 1
		e.rc.EncodeBit(&probs[symbol], bit)
		symbol = (symbol << 1) | bit
	}
}

func (e *encoder) encodeLen(lc *lenCoder, posState uint32, length int) {
	l := uint32(length - matchMinLen)
	switch {
	case l < lenLowSym:
		e.rc.EncodeBit(&lc.choice, 0)
		e.rc.BitTreeEncode(lc.low[posState], lenLowBits, l)
	case l < lenLowSym+lenMidSym:
		e.rc.EncodeBit(&lc.choice, 1)
		e.rc.EncodeBit(&lc.choice2, 0)
		e.rc.BitTreeEncode(lc.mid[posState], lenMidBits, l-lenLowSym)
	default:
		e.rc.EncodeBit(&lc.choice, 1)
		e.rc.EncodeBit(&lc.choice2, 1)
		e.rc.BitTreeEncode(lc.high, lenHighBits, l-lenLowSym-lenMidSym)
	}
}

// encodeDistance is decodeDistance run in reverse: given the length-derived
// posSlot tree and a resolved distance value, it emits the slot symbol plus
// whatever direct/aligned extra bits that slot requires.
func (e *encoder) encodeDistance(length int, distVal uint32) {
	slot := distanceToPosSlot(distVal)
	e.rc.BitTreeEncode(e.p.posSlot[lenToLenState(length)], 6, uint32(slot))

	base, numDirectBits := posSlotToDistance(slot)
	if numDirectBits == 0 {
		return
	}
	extra := distVal - base
	if slot < endPosModelIndex {
		off := int(base) - slot - 1
		e.rc.BitTreeReverseEncode(e.p.posDecoders[off:], numDirectBits, extra)
		return
	}
	direct := extra >> numAlignBits
	align := extra & ((1 << numAlignBits) - 1)
	e.rc.EncodeDirectBits(direct, numDirectBits-numAlignBits)
	e.rc.BitTreeReverseEncode(e.p.align, numAlignBits, align)
}

// Encode compresses data into a complete lzma-alone stream: a 13-byte
// header declaring props and the exact uncompressed size, followed by the
// range-coded symbol stream. Since the size is always known up front, no
// end-of-stream marker is written; Decode relies on the header's length.
func Encode(data []byte, props Properties) ([]byte, error) {
	var buf bytes.Buffer
	capacity := dictCapacity(uint32(len(data)))
	if err := WriteHeader(&buf, Header{
		Properties:   props,
		DictSize:     uint32(capacity),
		UnpackedSize: uint64(len(data)),
	}); err != nil {
		return nil, err
	}
	rc := rangecoder.NewEncoder(&buf)
	dict := ring.New(capacity)
	enc := newEncoder(rc, props, dict)
	if err := enc.run(data); err != nil {
		return nil, err
	}
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), rc.Err()
}

// lzma2ChunkSize bounds how much uncompressed data goes into one LZMA2
// chunk. LZMA2 allows up to 2MiB of uncompressed data per chunk, but the
// packed-size field only holds 16 bits (max 65536 bytes); worst-case
// (incompressible) input costs a little over 8 bits/byte under the range
// coder's adaptive probabilities, so chunks are kept at half that ceiling
// to guarantee the packed size never overflows the field.
const lzma2ChunkSize = 1 << 15

// EncodeLZMA2 compresses data into an LZMA2 chunk stream (§4.7's
// closing note): fixed-size chunks, each independently probability-reset,
// sharing one running dictionary for literal contexts. The match search
// covers only the current chunk, so no match reaches back into an earlier
// chunk.
func EncodeLZMA2(data []byte, props Properties) ([]byte, error) {
	var buf bytes.Buffer
	dict := ring.New(dictCapacity(uint32(len(data))))

	for i := 0; i < len(data); {
		end := i + lzma2ChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]

		resetMode := resetStateAndProps
		if i == 0 {
			resetMode = resetStateFull
			dict.Reset()
		}

		var cbuf bytes.Buffer
		rc := rangecoder.NewEncoder(&cbuf)
		enc := newEncoder(rc, props, dict)
		if err := enc.run(chunk); err != nil {
			return nil, err
		}
		if err := rc.Flush(); err != nil {
			return nil, err
		}
		if err := rc.Err(); err != nil {
			return nil, err
		}
		compressed := cbuf.Bytes()

		ctrl := byte(lzma2CtrlLZMAMask) | byte(resetMode<<5) | byte((len(chunk)-1)>>16&0x1f)
		buf.WriteByte(ctrl)
		if err := writeUint16Minus1(&buf, len(chunk)); err != nil {
			return nil, err
		}
		if err := writeUint16Minus1(&buf, len(compressed)); err != nil {
			return nil, err
		}
		buf.WriteByte(props.byte())
		buf.Write(compressed)

		i = end
	}
	buf.WriteByte(lzma2CtrlEOS)
	return buf.Bytes(), nil
}
