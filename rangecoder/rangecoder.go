// Package rangecoder implements the LZMA probability model and range
// coder (§3 "Probability", §4.7 "Range decoder"). It is the sibling of
// huffman and fse: all three describe tables on the wire and then decode a
// stream of symbols, but the arithmetic differs enough (per §9) that
// this package shares no code with the other two, only the bit-source
// convention of reading from an io.ByteReader-backed source.
package rangecoder

import (
	"io"

	"github.com/nyquistlabs/archivekit/errs"
)

// Prob is an 11-bit probability in [0, 2048], initialized to 1024.
type Prob = uint16

const (
	probBits  = 11
	probInit  Prob = 1 << (probBits - 1)
	probMax   Prob = 1 << probBits
	moveBits  = 5
	topValue  = 1 << 24
)

// NewProbs allocates and initializes n probabilities to 1024.
func NewProbs(n int) []Prob {
	p := make([]Prob, n)
	for i := range p {
		p[i] = probInit
	}
	return p
}

// Decoder is the LZMA range decoder.
type Decoder struct {
	r          io.ByteReader
	rng        uint32
	code       uint32
	err        error
}

// NewDecoder reads the leading 0x00 byte and the 32-bit big-endian code
// word, then primes range to 0xFFFFFFFF, per §4.7.
func NewDecoder(r io.ByteReader) (*Decoder, error) {
	d := &Decoder{r: r, rng: 0xFFFFFFFF}
	b, err := r.ReadByte()
	if err != nil {
		return nil, &errs.UnexpectedEof{Expected: "range coder prelude"}
	}
	if b != 0 {
		return nil, &errs.InvalidHeader{Message: "range decoder: leading byte must be 0"}
	}
	for i := 0; i < 4; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, &errs.UnexpectedEof{Expected: "range coder code word"}
		}
		d.code = d.code<<8 | uint32(b)
	}
	return d, nil
}

func (d *Decoder) normalize() {
	for d.rng < topValue {
		b, err := d.r.ReadByte()
		if err != nil {
			d.err = &errs.UnexpectedEof{Expected: "range coder byte"}
			b = 0
		}
		d.rng <<= 8
		d.code = d.code<<8 | uint32(b)
	}
}

// DecodeBit decodes one bit using and updating the probability at *p.
func (d *Decoder) DecodeBit(p *Prob) uint32 {
	bound := (d.rng >> probBits) * uint32(*p)
	var bit uint32
	if d.code < bound {
		d.rng = bound
		*p += (probMax - *p) >> moveBits
		bit = 0
	} else {
		d.rng -= bound
		d.code -= bound
		*p -= *p >> moveBits
		bit = 1
	}
	d.normalize()
	return bit
}

// DecodeDirectBits decodes n bits with a fixed 50% probability (no
// adaptation), used for high-order distance bits.
func (d *Decoder) DecodeDirectBits(n uint) uint32 {
	var result uint32
	for i := uint(0); i < n; i++ {
		d.rng >>= 1
		d.code -= d.rng
		t := 0 - (d.code >> 31)
		d.code += d.rng & t
		result = (result << 1) | (t + 1)
		d.normalize()
	}
	return result
}

// BitTreeDecode decodes a symbol through a tree of probabilities of depth
// numBits, MSB-first (used for literal bytes and length/distance slots).
func (d *Decoder) BitTreeDecode(probs []Prob, numBits uint) uint32 {
	m := uint32(1)
	for i := uint(0); i < numBits; i++ {
		m = (m << 1) + d.DecodeBit(&probs[m])
	}
	return m - (1 << numBits)
}

// BitTreeReverseDecode decodes a symbol through a tree of probabilities,
// LSB-first in the output value (used for distance alignment and low
// position bits), per §4.7.
func (d *Decoder) BitTreeReverseDecode(probs []Prob, numBits uint) uint32 {
	m := uint32(1)
	var result uint32
	for i := uint(0); i < numBits; i++ {
		bit := d.DecodeBit(&probs[m])
		m = (m << 1) + bit
		result |= bit << i
	}
	return result
}

// Err returns the first error observed while normalizing (a short read).
func (d *Decoder) Err() error { return d.err }

// IsFinished reports whether the decoder's code register has drained to
// zero, the invariant §8 checks at the end of a correctly terminated
// stream.
func (d *Decoder) IsFinished() bool { return d.code == 0 }
