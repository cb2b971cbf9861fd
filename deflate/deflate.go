package deflate

import (
	"bytes"
	"io"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/huffman"
)

const (
	minMatch      = 3
	maxMatchLen   = 258
	maxDistance   = windowSize
	hashBits      = 15
	hashSize      = 1 << hashBits
	maxChainTries = 128
	// maxBlockTokens caps how many literal/match tokens go into one
	// dynamic-Huffman block, keeping per-block table-building cost bounded
	// on large inputs.
	maxBlockTokens = 16000
)

// token is one LZ77 output: either a literal byte or a (length, distance)
// back-reference.
type token struct {
	isMatch bool
	lit     byte
	length  int
	dist    int
}

// Writer compresses to raw DEFLATE (§4.5, "Deflate encoder ... not
// shown but symmetric"): a hash-chain LZ77 match finder feeding per-chunk
// dynamic Huffman blocks built with the shared canonical-code construction.
type Writer struct {
	w   *bitio.Writer
	err error
}

// NewWriter returns a Writer compressing to w as raw DEFLATE.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bitio.NewWriter(w)}
}

// Write compresses p as one or more dynamic-Huffman blocks. Each call to
// Write treats p as an independent stream segment; callers wanting a single
// coherent back-reference window should buffer their input and Write once.
func (z *Writer) Write(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	tokens := findMatches(p)
	for _, chunk := range chunkTokens(tokens, maxBlockTokens) {
		if err := z.writeDynamicBlock(chunk, false); err != nil {
			z.err = err
			return 0, err
		}
	}
	return len(p), nil
}

// Close ends the stream with an empty BFINAL=1 block and flushes any
// partial final byte.
func (z *Writer) Close() error {
	if z.err != nil {
		return z.err
	}
	if err := z.writeDynamicBlock(nil, true); err != nil {
		z.err = err
		return err
	}
	if err := z.w.Flush(); err != nil {
		z.err = err
		return err
	}
	return z.w.Err()
}

// Encode compresses data in one shot and returns the raw DEFLATE stream.
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

func hashAt(p []byte, i int) uint32 {
	if i+3 > len(p) {
		return 0
	}
	v := uint32(p[i])<<16 | uint32(p[i+1])<<8 | uint32(p[i+2])
	return (v * 2654435761) >> (32 - hashBits)
}

func matchLen(p []byte, a, b int) int {
	n := len(p)
	l := 0
	for b+l < n && p[a+l] == p[b+l] && l < maxMatchLen {
		l++
	}
	return l
}

// findMatches runs a greedy hash-chain LZ77 match finder over p, bounded to
// maxChainTries candidates per position and maxDistance back.
func findMatches(p []byte) []token {
	n := len(p)
	head := make([]int32, hashSize)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int32, n)
	var tokens []token

	insert := func(i int) {
		if i+minMatch > n {
			return
		}
		h := hashAt(p, i)
		prev[i] = head[h]
		head[h] = int32(i)
	}

	i := 0
	for i < n {
		bestLen, bestDist := 0, 0
		if i+minMatch <= n {
			h := hashAt(p, i)
			cand := head[h]
			tries := 0
			for cand >= 0 && tries < maxChainTries {
				dist := i - int(cand)
				if dist > maxDistance {
					break
				}
				l := matchLen(p, int(cand), i)
				if l > bestLen {
					bestLen, bestDist = l, dist
				}
				cand = prev[cand]
				tries++
			}
		}
		if bestLen >= minMatch {
			tokens = append(tokens, token{isMatch: true, length: bestLen, dist: bestDist})
			end := i + bestLen
			for ; i < end; i++ {
				insert(i)
			}
		} else {
			tokens = append(tokens, token{lit: p[i]})
			insert(i)
			i++
		}
	}
	return tokens
}

func chunkTokens(tokens []token, size int) [][]token {
	if len(tokens) == 0 {
		return nil
	}
	var chunks [][]token
	for len(tokens) > 0 {
		n := size
		if n > len(tokens) {
			n = len(tokens)
		}
		chunks = append(chunks, tokens[:n])
		tokens = tokens[n:]
	}
	return chunks
}

func lengthToSymbol(length int) (sym, extra int, extraBits uint) {
	for idx := len(lengthBase) - 1; idx >= 0; idx-- {
		if length >= lengthBase[idx] {
			return 257 + idx, length - lengthBase[idx], lengthExtraBits[idx]
		}
	}
	return 257, 0, 0
}

func distanceToSymbol(dist int) (sym, extra int, extraBits uint) {
	for idx := len(distBase) - 1; idx >= 0; idx-- {
		if dist >= distBase[idx] {
			return idx, dist - distBase[idx], distExtraBits[idx]
		}
	}
	return 0, 0, 0
}

func (z *Writer) writeDynamicBlock(chunk []token, final bool) error {
	litFreq := make([]int, litlenCount)
	distFreq := make([]int, distCount)
	litFreq[endOfBlock] = 1
	for _, t := range chunk {
		if !t.isMatch {
			litFreq[t.lit]++
			continue
		}
		lsym, _, _ := lengthToSymbol(t.length)
		dsym, _, _ := distanceToSymbol(t.dist)
		litFreq[lsym]++
		distFreq[dsym]++
	}

	litLens := huffman.BuildCanonicalLengths(litFreq, 15)
	distLens := huffman.BuildCanonicalLengths(distFreq, 15)

	hlit := 257
	for i := litlenCount - 1; i >= 257; i-- {
		if litLens[i] != 0 {
			hlit = i + 1
			break
		}
	}
	hdist := 1
	for i := distCount - 1; i >= 1; i-- {
		if distLens[i] != 0 {
			hdist = i + 1
			break
		}
	}

	clTokens, clFreq := rleCodeLengths(append(append([]uint8{}, litLens[:hlit]...), distLens[:hdist]...))
	clLens := huffman.BuildCanonicalLengths(clFreq, 7)
	hclen := 4
	for i := 18; i >= 4; i-- {
		if clLens[codeLengthOrder[i]] != 0 {
			hclen = i + 1
			break
		}
	}

	bfinal := uint32(0)
	if final {
		bfinal = 1
	}
	z.w.WriteBits(bfinal, 1)
	z.w.WriteBits(2, 2)
	z.w.WriteBits(uint32(hlit-257), 5)
	z.w.WriteBits(uint32(hdist-1), 5)
	z.w.WriteBits(uint32(hclen-4), 4)
	for i := 0; i < hclen; i++ {
		z.w.WriteBits(uint32(clLens[codeLengthOrder[i]]), 3)
	}

	clEncode := huffman.NewEncodeTable(clLens)
	for _, t := range clTokens {
		clEncode.WriteLSB(z.w, t.sym)
		if t.extraBits > 0 {
			z.w.WriteBits(uint32(t.extra), t.extraBits)
		}
	}

	litEncode := huffman.NewEncodeTable(litLens)
	distEncode := huffman.NewEncodeTable(distLens)
	for _, t := range chunk {
		if !t.isMatch {
			litEncode.WriteLSB(z.w, int(t.lit))
			continue
		}
		lsym, lextra, lbits := lengthToSymbol(t.length)
		litEncode.WriteLSB(z.w, lsym)
		if lbits > 0 {
			z.w.WriteBits(uint32(lextra), lbits)
		}
		dsym, dextra, dbits := distanceToSymbol(t.dist)
		distEncode.WriteLSB(z.w, dsym)
		if dbits > 0 {
			z.w.WriteBits(uint32(dextra), dbits)
		}
	}
	litEncode.WriteLSB(z.w, endOfBlock)
	return z.w.Err()
}

type clToken struct {
	sym       int
	extra     int
	extraBits uint
}

// rleCodeLengths applies the RFC 1951 §3.2.7 run-length scheme (codes
// 16/17/18) to a concatenated litlen+distance length array, returning the
// token stream alongside the frequency table needed to Huffman-code it.
func rleCodeLengths(lens []uint8) ([]clToken, []int) {
	freq := make([]int, 19)
	var out []clToken
	emit := func(t clToken) {
		out = append(out, t)
		freq[t.sym]++
	}
	i := 0
	for i < len(lens) {
		l := lens[i]
		runLen := 1
		for i+runLen < len(lens) && lens[i+runLen] == l {
			runLen++
		}
		if l == 0 {
			n := runLen
			for n > 0 {
				switch {
				case n < 3:
					emit(clToken{sym: 0})
					n--
				case n <= 10:
					emit(clToken{sym: 17, extra: n - 3, extraBits: 3})
					n = 0
				default:
					take := n
					if take > 138 {
						take = 138
					}
					emit(clToken{sym: 18, extra: take - 11, extraBits: 7})
					n -= take
				}
			}
		} else {
			emit(clToken{sym: int(l)})
			remaining := runLen - 1
			for remaining > 0 {
				if remaining < 3 {
					emit(clToken{sym: int(l)})
					remaining--
					continue
				}
				take := remaining
				if take > 6 {
					take = 6
				}
				emit(clToken{sym: 16, extra: take - 3, extraBits: 2})
				remaining -= take
			}
		}
		i += runLen
	}
	return out, freq
}
