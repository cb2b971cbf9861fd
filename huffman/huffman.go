// Package huffman implements the canonical-Huffman construction shared by
// every codec that uses Huffman coding (§4.4, §9 "Shared Huffman
// core"). DEFLATE and LZH decode LSB-first via the fast-table/slow-fallback
// DecodeLSB path; BZip2 decodes MSB-first via DecodeMSB; Zstandard's
// literals section decodes via DecodeReverse, walking the same slow-path
// arrays against an fse.ReverseBitReader since Zstd's Huffman streams share
// FSE's reversed-bitstream convention. All three build canonical codes the
// same way: sort by (length, symbol), assign consecutive integers per
// length, shift left between lengths.
package huffman

import (
	"sort"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/fse"
)

const maxBits = 32

// entry is a decoder table slot: a symbol plus the code length that
// produced it (length 0 means "fall through to the slow path").
type entry struct {
	symbol uint16
	length uint8
}

// Table is a canonical-Huffman decoder: a 2^fastBits flat lookup table for
// codes of length <= fastBits, with a (baseCode, firstSymbolIndex) slow
// path per length for longer codes.
type Table struct {
	fastBits   uint
	fast       []entry
	// per-length slow path, indexed by length
	firstCode  [maxBits + 2]uint32
	firstIndex [maxBits + 2]int
	maxLen     uint8
	sortedSyms []uint16 // symbols in canonical code order
}

// New builds a canonical Huffman decode table from per-symbol code
// lengths. lengths[i] == 0 means symbol i is unused. fastBits controls the
// size of the direct lookup table (§4.4 suggests K≈9).
//
// Over-subscribed length sets (sum of 2^-length > 1) are rejected. A
// single-symbol length-1 "tree" is accepted as the degenerate
// under-subscribed case canonical Huffman construction explicitly allows.
func New(lengths []uint8, fastBits uint) (*Table, error) {
	type pair struct {
		symbol uint16
		length uint8
	}
	pairs := make([]pair, 0, len(lengths))
	var maxLen uint8
	for i, l := range lengths {
		if l == 0 {
			continue
		}
		pairs = append(pairs, pair{uint16(i), l})
		if l > maxLen {
			maxLen = l
		}
	}
	if len(pairs) == 0 {
		return nil, &errs.InvalidHeader{Message: "huffman: empty code length set"}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].length != pairs[j].length {
			return pairs[i].length < pairs[j].length
		}
		return pairs[i].symbol < pairs[j].symbol
	})

	// Verify the length set is not over-subscribed via the Kraft
	// inequality, computed exactly as a sum of powers of two to avoid
	// floating point.
	var kraft uint64 // numerator over a common denominator of 2^maxLen
	for _, p := range pairs {
		kraft += uint64(1) << (uint(maxLen) - uint(p.length))
	}
	limit := uint64(1) << uint(maxLen)
	if kraft > limit {
		return nil, &errs.CorruptedData{Message: "huffman: over-subscribed code length set"}
	}

	t := &Table{fastBits: fastBits, maxLen: maxLen}
	if fastBits > uint(maxLen) {
		fastBits = uint(maxLen)
		if fastBits == 0 {
			fastBits = 1
		}
		t.fastBits = fastBits
	}
	t.fast = make([]entry, 1<<t.fastBits)
	t.sortedSyms = make([]uint16, len(pairs))

	code := uint32(0)
	length := uint8(0)
	var counts [maxBits + 2]int
	for i, p := range pairs {
		if p.length > length {
			code <<= uint(p.length - length)
			length = p.length
		}
		t.sortedSyms[i] = p.symbol
		counts[length]++
		if int(length) <= int(t.fastBits) {
			fillFast(t, code, length, p.symbol)
		}
		code++
	}

	// Rebuild the (firstCode, firstIndex) slow-path arrays per length.
	idx := 0
	code = 0
	length = 0
	for l := uint8(1); l <= maxLen; l++ {
		code <<= 1
		t.firstCode[l] = code
		t.firstIndex[l] = idx
		code += uint32(counts[l])
		idx += counts[l]
	}
	t.firstIndex[maxLen+1] = idx
	return t, nil
}

// fillFast populates every fast-table slot whose low `length` bits match
// code, reversed to match the LSB-first stream order DEFLATE/LZH use: bit 0
// of the peeked value is the first bit read, but canonical codes are
// conventionally built MSB-first, so the bit order is reversed when
// indexing the table.
func fillFast(t *Table, code uint32, length uint8, symbol uint16) {
	reversed := reverseBits(code, length)
	step := uint32(1) << length
	for i := reversed; i < uint32(len(t.fast)); i += step {
		t.fast[i] = entry{symbol: symbol, length: length}
	}
}

func reverseBits(v uint32, n uint8) uint32 {
	var r uint32
	for i := uint8(0); i < n; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

// DecodeLSB decodes one symbol from an LSB-first bit reader (DEFLATE/LZH
// framing), returning the symbol and consuming exactly its code length.
func (t *Table) DecodeLSB(r *bitio.Reader) (uint16, error) {
	peek := r.PeekBits(t.fastBits)
	e := t.fast[peek]
	if e.length != 0 {
		r.SkipBits(uint(e.length))
		return e.symbol, nil
	}
	return t.decodeSlowLSB(r)
}

func (t *Table) decodeSlowLSB(r *bitio.Reader) (uint16, error) {
	// Walk bit-by-bit beyond the fast table, building up the code MSB-first
	// (first bit read becomes the most-significant bit of the candidate
	// code), matching the canonical assignment above.
	code := uint32(0)
	for length := uint8(1); length <= t.maxLen; length++ {
		bit := r.ReadBits(1)
		code = (code << 1) | bit
		count := t.countAtLength(length)
		if count > 0 && code-t.firstCode[length] < uint32(count) {
			idx := t.firstIndex[length] + int(code-t.firstCode[length])
			return t.sortedSyms[idx], nil
		}
	}
	return 0, &errs.InvalidHuffmanCode{}
}

// DecodeMSB decodes one symbol from an MSB-first bit reader (BZip2's
// framing), walking the slow-path arrays bit by bit. BZip2's alphabet is
// small and its codes short enough that a flat fast-table buys little, so
// this skips straight to the canonical (firstCode, firstIndex) walk shared
// with the LSB slow path.
func (t *Table) DecodeMSB(br *bitio.MSBReader) (uint16, error) {
	code := uint32(0)
	for length := uint8(1); length <= t.maxLen; length++ {
		code = (code << 1) | uint32(br.ReadBits(1))
		if err := br.Err(); err != nil {
			return 0, err
		}
		count := t.countAtLength(length)
		if count > 0 && code-t.firstCode[length] < uint32(count) {
			idx := t.firstIndex[length] + int(code-t.firstCode[length])
			return t.sortedSyms[idx], nil
		}
	}
	return 0, &errs.InvalidHuffmanCode{}
}

// DecodeReverse decodes one symbol from a Zstandard-style reversed
// bitstream (§4.8), walking the same slow-path arrays DecodeMSB uses:
// Zstd's literals-section Huffman codes are constructed canonically just
// like every other table here, and consumed bit-by-bit from the high end
// of the buffer down, the same convention fse.Decoder uses for sequence
// symbols.
func (t *Table) DecodeReverse(br *fse.ReverseBitReader) (uint16, error) {
	code := uint32(0)
	for length := uint8(1); length <= t.maxLen; length++ {
		code = (code << 1) | br.ReadBit()
		if err := br.Err(); err != nil {
			return 0, err
		}
		count := t.countAtLength(length)
		if count > 0 && code-t.firstCode[length] < uint32(count) {
			idx := t.firstIndex[length] + int(code-t.firstCode[length])
			return t.sortedSyms[idx], nil
		}
	}
	return 0, &errs.InvalidHuffmanCode{}
}

func (t *Table) countAtLength(length uint8) int {
	next := t.firstIndex[length]
	if int(length)+1 <= int(maxBits+1) {
		nextLen := t.firstIndex[length+1]
		return nextLen - next
	}
	return len(t.sortedSyms) - next
}

// EncodeTable is the symbol -> (code, length) side of a canonical Huffman
// code, used by encoders (DEFLATE dynamic blocks, LZH's C/P trees).
type EncodeTable struct {
	Codes   []uint32
	Lengths []uint8
}

// NewEncodeTable builds canonical (code, length) pairs for every symbol
// with a non-zero length, using the same sort-by-(length,symbol) and
// increment-between-lengths construction as New.
func NewEncodeTable(lengths []uint8) *EncodeTable {
	type pair struct {
		symbol int
		length uint8
	}
	var pairs []pair
	for i, l := range lengths {
		if l > 0 {
			pairs = append(pairs, pair{i, l})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].length != pairs[j].length {
			return pairs[i].length < pairs[j].length
		}
		return pairs[i].symbol < pairs[j].symbol
	})
	et := &EncodeTable{Codes: make([]uint32, len(lengths)), Lengths: append([]uint8(nil), lengths...)}
	code := uint32(0)
	length := uint8(0)
	for _, p := range pairs {
		if p.length > length {
			code <<= uint(p.length - length)
			length = p.length
		}
		et.Codes[p.symbol] = code
		code++
	}
	return et
}

// WriteLSB writes the code for symbol to w, LSB-first (bits emitted in
// reversed order relative to the canonical MSB-first assignment, matching
// DEFLATE/LZH stream order).
func (et *EncodeTable) WriteLSB(w *bitio.Writer, symbol int) {
	length := et.Lengths[symbol]
	code := reverseBits(et.Codes[symbol], length)
	w.WriteBits(code, uint(length))
}

// WriteMSB writes the code for symbol to w, MSB-first (the canonical
// assignment's natural bit order, used by BZip2's framing).
func (et *EncodeTable) WriteMSB(w *bitio.MSBWriter, symbol int) {
	w.WriteBits(et.Codes[symbol], uint(et.Lengths[symbol]))
}

// BuildCanonicalLengths assigns canonical code lengths are already given as
// input to New; this helper instead derives a length-limited set of code
// lengths from symbol frequencies using a simple package-merge-free
// greedy scheme suitable for the encoders in this module (DEFLATE dynamic
// blocks, BZip2's length-limited tables, LZH's C-tree). It is not claimed
// optimal, only valid (prefix-free, <= maxLen): a skewed or Fibonacci-like
// frequency distribution can make the Huffman merge assign a symbol a
// depth well past maxLen, and flooring that depth to maxLen without
// adjusting anything else can leave the length set over-subscribed
// (violating the Kraft inequality), so every clamp is followed by
// rebalanceLengths to redistribute the excess weight onto shorter codes.
func BuildCanonicalLengths(freqs []int, maxLen uint8) []uint8 {
	type node struct {
		freq      int
		symbols   []int
	}
	var nodes []*node
	for sym, f := range freqs {
		if f > 0 {
			nodes = append(nodes, &node{freq: f, symbols: []int{sym}})
		}
	}
	lengths := make([]uint8, len(freqs))
	if len(nodes) == 0 {
		return lengths
	}
	if len(nodes) == 1 {
		lengths[nodes[0].symbols[0]] = 1
		return lengths
	}
	depth := make(map[int]uint8)
	// Standard Huffman merge via a slice-backed priority queue; small
	// alphabets (<1000 symbols) make an O(n^2 log n) approach acceptable.
	for len(nodes) > 1 {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].freq < nodes[j].freq })
		a, b := nodes[0], nodes[1]
		nodes = nodes[2:]
		for _, s := range a.symbols {
			depth[s]++
		}
		for _, s := range b.symbols {
			depth[s]++
		}
		merged := &node{freq: a.freq + b.freq, symbols: append(append([]int{}, a.symbols...), b.symbols...)}
		nodes = append(nodes, merged)
	}
	for sym, d := range depth {
		if d > maxLen {
			d = maxLen
		}
		if d == 0 {
			d = 1
		}
		lengths[sym] = d
	}
	rebalanceLengths(lengths, maxLen)
	return lengths
}

// rebalanceLengths repairs a length set that may have gone over-subscribed
// (Kraft sum of 2^-length over 1) after clamping depths down to maxLen: a
// skewed distribution can merge so many symbols onto one branch that their
// true Huffman depth is far past maxLen, and flooring them all to maxLen
// packs more codes in at that length than the Kraft inequality allows.
//
// Each pass finds the deepest length below maxLen still holding a symbol and
// moves one symbol from it to the next length down, which trims the Kraft
// sum by exactly 2^-(l+1); repeating this until the sum fits is the usual
// post-clamp fix-up for length-limited canonical codes (and mirrors the
// bl_count-style repair DEFLATE's own length-limiting implementations use).
func rebalanceLengths(lengths []uint8, maxLen uint8) {
	counts := make([]int, maxLen+1)
	for _, l := range lengths {
		if l > 0 {
			counts[l]++
		}
	}
	kraftSum := func() uint64 {
		var sum uint64
		for l := 1; l <= int(maxLen); l++ {
			sum += uint64(counts[l]) << uint(int(maxLen)-l)
		}
		return sum
	}
	limit := uint64(1) << uint(maxLen)
	for kraftSum() > limit {
		l := int(maxLen) - 1
		for l >= 1 && counts[l] == 0 {
			l--
		}
		if l < 1 {
			// Alphabet too large to fit under maxLen at all; New's own
			// Kraft check will reject this rather than silently truncating.
			break
		}
		for i, sl := range lengths {
			if sl == uint8(l) {
				lengths[i] = uint8(l + 1)
				break
			}
		}
		counts[l]--
		counts[l+1]++
	}
}
