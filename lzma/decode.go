package lzma

import (
	"bufio"
	"bytes"
	"io"

	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/rangecoder"
	"github.com/nyquistlabs/archivekit/ring"
)

// endMarkerDistance is the LZMA end-of-stream marker: a match distance of
// 0xFFFFFFFF, only legal when the header's unpacked size is unknown.
const endMarkerDistance = 0xFFFFFFFF

// decoder runs the LZMA symbol loop against an already-primed range
// decoder and probability model, writing output into dict. Shared by
// Decode (lzma-alone) and the LZMA2 chunk reader, which resets only part
// of this state between chunks per its control-byte reset flags.
type decoder struct {
	rc    *rangecoder.Decoder
	p     *probs
	props Properties
	dict  *ring.Buffer

	state    int
	rep0, rep1, rep2, rep3 uint32
	pos      uint32 // total bytes produced, for pos_state and literal context
}

func newDecoder(rc *rangecoder.Decoder, props Properties, dict *ring.Buffer) *decoder {
	return &decoder{rc: rc, p: newProbs(props), props: props, dict: dict}
}

// run decodes symbols until limit bytes have been produced (limit<0 means
// "until the end marker"), appending output to out.
func (d *decoder) run(out []byte, limit int64) ([]byte, error) {
	posMask := uint32(1<<uint(d.props.PB)) - 1
	for limit < 0 || int64(len(out)) < limit {
		posState := d.pos & posMask
		isMatchBit := d.rc.DecodeBit(&d.p.isMatch[d.state][posState])
		if isMatchBit == 0 {
			b, err := d.decodeLiteral()
			if err != nil {
				return out, err
			}
			out = append(out, b)
			d.pos++
			d.state = literalNextState[d.state]
			continue
		}

		var length int
		isRepBit := d.rc.DecodeBit(&d.p.isRep[d.state])
		if isRepBit == 0 {
			// Normal match: shift the rep history, decode length then
			// distance slot (§4.7 step 3).
			d.rep3, d.rep2, d.rep1 = d.rep2, d.rep1, d.rep0
			var err error
			length, err = d.decodeLen(d.p.lenCoder, posState)
			if err != nil {
				return out, err
			}
			slot := int(d.rc.BitTreeDecode(d.p.posSlot[lenToLenState(length)], 6))
			dist, err := d.decodeDistance(slot)
			if err != nil {
				return out, err
			}
			if dist == endMarkerDistance {
				if limit >= 0 {
					return out, &errs.CorruptedData{Message: "lzma: unexpected end marker"}
				}
				return out, nil
			}
			d.rep0 = dist
			d.state = matchNextState(d.state)
		} else {
			if d.rc.DecodeBit(&d.p.isRepG0[d.state]) == 0 {
				if d.rc.DecodeBit(&d.p.isRep0Long[d.state][posState]) == 0 {
					// Short rep: length 1, rep0 unchanged.
					d.state = shortRepNextState(d.state)
					length = 1
					var err error
					out, err = d.dict.CopyFromHistory(out, int(d.rep0)+1, length)
					if err != nil {
						return out, err
					}
					d.pos++
					continue
				}
			} else {
				var dist uint32
				if d.rc.DecodeBit(&d.p.isRepG1[d.state]) == 0 {
					dist = d.rep1
					d.rep1 = d.rep0
				} else if d.rc.DecodeBit(&d.p.isRepG2[d.state]) == 0 {
					dist = d.rep2
					d.rep2 = d.rep1
					d.rep1 = d.rep0
				} else {
					dist = d.rep3
					d.rep3 = d.rep2
					d.rep2 = d.rep1
					d.rep1 = d.rep0
				}
				d.rep0 = dist
			}
			d.state = repNextState(d.state)
			var err error
			length, err = d.decodeLen(d.p.repLenCoder, posState)
			if err != nil {
				return out, err
			}
		}

		var err error
		out, err = d.dict.CopyFromHistory(out, int(d.rep0+1), length)
		if err != nil {
			return out, err
		}
		d.pos += uint32(length)
	}
	return out, nil
}

func (d *decoder) decodeLiteral() (byte, error) {
	var prevByte byte
	if d.dict.Len() > 0 {
		prevByte = d.dict.ByteAt(1)
	}
	ctx := literalContext(d.props, d.pos, prevByte)
	probs := d.p.literal[ctx]

	var symbol uint32 = 1
	if d.state >= 7 {
		matchByte := d.dict.ByteAt(int(d.rep0) + 1)
		for symbol < 0x100 {
			matchBit := uint32(matchByte>>7) & 1
			matchByte <<= 1
			bit := d.rc.DecodeBit(&probs[((1+matchBit)<<8)+symbol])
			symbol = (symbol << 1) | bit
			if matchBit != bit {
				break
			}
		}
	}
	for symbol < 0x100 {
		symbol = (symbol << 1) | d.rc.DecodeBit(&probs[symbol])
	}
	b := byte(symbol)
	d.dict.WriteByte(b)
	return b, nil
}

func (d *decoder) decodeLen(lc *lenCoder, posState uint32) (int, error) {
	if d.rc.DecodeBit(&lc.choice) == 0 {
		return matchMinLen + int(d.rc.BitTreeDecode(lc.low[posState], lenLowBits)), nil
	}
	if d.rc.DecodeBit(&lc.choice2) == 0 {
		return matchMinLen + lenLowSym + int(d.rc.BitTreeDecode(lc.mid[posState], lenMidBits)), nil
	}
	return matchMinLen + lenLowSym + lenMidSym + int(d.rc.BitTreeDecode(lc.high, lenHighBits)), nil
}

func (d *decoder) decodeDistance(slot int) (uint32, error) {
	base, numDirectBits := posSlotToDistance(slot)
	if numDirectBits == 0 {
		return base, nil
	}
	if slot < endPosModelIndex {
		off := int(base) - slot - 1
		extra := d.rc.BitTreeReverseDecode(d.p.posDecoders[off:], numDirectBits)
		return base + extra, nil
	}
	direct := d.rc.DecodeDirectBits(numDirectBits - numAlignBits)
	align := d.rc.BitTreeReverseDecode(d.p.align, numAlignBits)
	return base + (direct << numAlignBits) + align, nil
}

// Decode decompresses a complete lzma-alone stream held in memory.
func Decode(data []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	rc, err := rangecoder.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	dict := ring.New(dictCapacity(h.DictSize))
	dec := newDecoder(rc, h.Properties, dict)

	limit := int64(-1)
	if h.UnpackedSize != UnpackedSizeUnknown {
		limit = int64(h.UnpackedSize)
	}
	out, err := dec.run(make([]byte, 0, limit8(limit)), limit)
	if err != nil {
		return nil, err
	}
	if rc.Err() != nil {
		return nil, rc.Err()
	}
	return out, nil
}

func limit8(limit int64) int64 {
	if limit < 0 {
		return 0
	}
	return limit
}

// DecodeWithLimit decompresses a raw LZMA stream (no lzma-alone header) of
// exactly n output bytes using explicit properties and dictionary
// capacity, as used by the LZMA2 chunk container where each chunk shares
// one running dictionary instead of restarting with its own header.
func DecodeWithLimit(r io.ByteReader, props Properties, dict *ring.Buffer, state *ChunkState, n int) ([]byte, error) {
	rc, err := rangecoder.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	dec := &decoder{rc: rc, p: state.probs, props: props, dict: dict,
		state: state.state, rep0: state.rep0, rep1: state.rep1, rep2: state.rep2, rep3: state.rep3, pos: state.pos}
	out, err := dec.run(nil, int64(n))
	if err != nil {
		return nil, err
	}
	state.probs = dec.p
	state.state = dec.state
	state.rep0, state.rep1, state.rep2, state.rep3 = dec.rep0, dec.rep1, dec.rep2, dec.rep3
	state.pos = dec.pos
	return out, nil
}
