package lzh

import (
	"bytes"
	"math/bits"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/huffman"
)

const (
	minMatch      = 3
	maxMatch      = 256
	maxBlockBytes = 1<<16 - 1 // block size field is 16 bits
)

// Encode compresses data with method. Only Lh0 (stored) and Lh5 are
// supported for encoding (§4.10: "Encoder supported for lh0; lh5
// greedy-match encoder ... is provided but uses the simpler single-table
// Huffman and is not asserted bit-identical to historic lha"); lh4/lh6/lh7
// are decode-only here.
func Encode(data []byte, method Method) ([]byte, error) {
	switch method {
	case Lh0:
		return append([]byte(nil), data...), nil
	case Lh5:
		return encodeLh5(data)
	default:
		return nil, &errs.UnsupportedMethod{Name: "lzh encode " + method.String()}
	}
}

func encodeLh5(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)

	toks := findLzssMatches(data, Lh5.WindowSize())
	np := Lh5.positionAlphabetSize()

	pos := 0 // output byte offset of the start of the current block's tokens
	i := 0
	for i < len(toks) {
		blockToks, consumedBytes, next := takeBlock(toks, i)
		if err := writeBlock(w, blockToks, consumedBytes, np); err != nil {
			return nil, err
		}
		pos += consumedBytes
		i = next
	}
	if err := w.Flush(); err != nil {
		return nil, &errs.Io{Err: err}
	}
	return buf.Bytes(), nil
}

// takeBlock greedily collects tokens from toks[start:] until the block's
// contributed byte count would exceed maxBlockBytes (the 16-bit block-size
// field's range), returning the slice, its byte count, and the next index.
func takeBlock(toks []lzhToken, start int) (block []lzhToken, byteCount int, next int) {
	i := start
	for i < len(toks) {
		n := 1
		if toks[i].isMatch {
			n = toks[i].length
		}
		if byteCount+n > maxBlockBytes && byteCount > 0 {
			break
		}
		byteCount += n
		i++
	}
	return toks[start:i], byteCount, i
}

// writeBlock emits one block: the 16-bit block size, the C-tree (preceded
// by its own temporary tree), the P-tree, then the block's coded symbols.
func writeBlock(w *bitio.Writer, toks []lzhToken, byteCount int, np int) error {
	w.WriteBits(uint32(byteCount), 16)

	cFreqs := make([]int, NC)
	pFreqs := make([]int, np)
	for _, t := range toks {
		if t.isMatch {
			cFreqs[256+t.length-3]++
			p, _, _ := positionCode(t.distance)
			pFreqs[p]++
		} else {
			cFreqs[int(t.lit)]++
		}
	}
	ensureNonEmpty(cFreqs)
	ensureNonEmpty(pFreqs)

	cLengths := huffman.BuildCanonicalLengths(cFreqs, maxCodeLength)
	pLengths := huffman.BuildCanonicalLengths(pFreqs, maxCodeLength)

	ptFreqs := make([]int, NT)
	for _, l := range cLengths {
		ptFreqs[ptSymbolFor(l)]++
	}
	ensureNonEmpty(ptFreqs)
	ptLengths := huffman.BuildCanonicalLengths(ptFreqs, maxCodeLength)

	// C-tree: fixed code count NC, then the temporary tree, then every
	// C-length coded through it.
	w.WriteBits(NC, 9)
	writePTTree(w, ptLengths)
	ptEnc := huffman.NewEncodeTable(ptLengths)
	for _, l := range cLengths {
		ptEnc.WriteLSB(w, int(ptSymbolFor(l)))
	}

	// P-tree: fixed code count np, escaped lengths, no skip mechanism.
	w.WriteBits(uint32(np), 4)
	for i := 0; i < np; i++ {
		writeEscapedLength(w, pLengths[i])
	}

	cEnc := huffman.NewEncodeTable(cLengths)
	pEnc := huffman.NewEncodeTable(pLengths)
	for _, t := range toks {
		if t.isMatch {
			cEnc.WriteLSB(w, 256+t.length-3)
			p, extra, extraBits := positionCode(t.distance)
			pEnc.WriteLSB(w, p)
			if extraBits > 0 {
				w.WriteBits(extra, extraBits)
			}
		} else {
			cEnc.WriteLSB(w, int(t.lit))
		}
	}
	return nil
}

func ensureNonEmpty(freqs []int) {
	for _, f := range freqs {
		if f > 0 {
			return
		}
	}
	freqs[0] = 1
}

// ptSymbolFor maps a C-tree code length to the temporary-tree symbol that
// encodes it on the wire: 0 for an unused slot, length+3 otherwise. This
// encoder never emits the zero-run shortcuts (temporary symbols 1 and 2),
// trading wire compactness for a much simpler writer.
func ptSymbolFor(length uint8) uint8 {
	if length == 0 {
		return 0
	}
	return length + 3
}

// writePTTree writes the temporary tree's own code lengths: a fixed count
// NT, then each length escaped, except index 3 (reserved, always a 2-bit
// skip of 0 entries).
func writePTTree(w *bitio.Writer, ptLengths []uint8) {
	w.WriteBits(NT, 5)
	for i := 0; i < NT; i++ {
		if i == 3 {
			w.WriteBits(0, 2)
			continue
		}
		writeEscapedLength(w, ptLengths[i])
	}
}

// positionCode converts a match distance to the P-tree symbol p plus the
// extra bits that follow it on the wire (§4.10: distance = 1 if p==0,
// else (1<<p)+extra with exactly p extra bits).
func positionCode(distance int) (p int, extra uint32, extraBits uint) {
	if distance <= 1 {
		return 0, 0, 0
	}
	p = bits.Len(uint(distance)) - 1
	extra = uint32(distance - (1 << p))
	return p, extra, uint(p)
}

// lzhToken is one LZSS match-stream element: a literal byte or a
// (length, distance) back-reference.
type lzhToken struct {
	isMatch  bool
	lit      byte
	length   int
	distance int
}

const hashBits = 15

func hash3(data []byte, i int) uint32 {
	v := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16
	return (v * 2654435761) >> (32 - hashBits)
}

// findLzssMatches runs a hash-chain LZSS search (min_match=3, max_match=256,
// window-bounded distance), the same hash-chain idiom DEFLATE's encoder
// uses, generalized to lh5's match-length ceiling.
func findLzssMatches(data []byte, window int) []lzhToken {
	n := len(data)
	var toks []lzhToken
	if n == 0 {
		return toks
	}
	head := make([]int32, 1<<hashBits)
	for i := range head {
		head[i] = -1
	}
	chain := make([]int32, n)
	const maxChainTries = 64

	i := 0
	for i < n {
		if i+minMatch > n {
			toks = append(toks, lzhToken{lit: data[i]})
			i++
			continue
		}
		h := hash3(data, i)
		cand := head[h]
		bestLen, bestDist := 0, 0
		for tries := 0; cand >= 0 && tries < maxChainTries && i-int(cand) <= window; tries++ {
			mlen := matchLenAt(data, int(cand), i, n)
			if mlen > bestLen {
				bestLen, bestDist = mlen, i-int(cand)
			}
			cand = chain[cand]
		}
		chain[i] = head[h]
		head[h] = int32(i)

		if bestLen < minMatch {
			toks = append(toks, lzhToken{lit: data[i]})
			i++
			continue
		}
		toks = append(toks, lzhToken{isMatch: true, length: bestLen, distance: bestDist})
		end := i + bestLen
		for j := i + 1; j < end && j+minMatch <= n; j++ {
			hj := hash3(data, j)
			chain[j] = head[hj]
			head[hj] = int32(j)
		}
		i = end
	}
	return toks
}

func matchLenAt(data []byte, a, b, limit int) int {
	n := 0
	for b+n < limit && n < maxMatch && data[a+n] == data[b+n] {
		n++
	}
	return n
}
