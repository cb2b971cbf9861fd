package lzh

import (
	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/huffman"
)

// readPTTree reads the temporary tree (§4.10): a 5-bit code count n,
// then, for n==0, a single 5-bit symbol (the degenerate one-code tree);
// otherwise n code lengths, each a 3-bit base with a unary extension past 7,
// except index 3, which is never assigned a real length and instead carries
// a 2-bit skip count (symbol 3 is reserved and always unused).
func readPTTree(r *bitio.Reader) (*huffman.Table, error) {
	n := int(r.ReadBits(5))
	if err := r.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		c := int(r.ReadBits(5))
		if err := r.Err(); err != nil {
			return nil, err
		}
		lengths := make([]uint8, NT)
		if c < NT {
			lengths[c] = 1
		}
		return huffman.New(lengths, 5)
	}

	lengths := make([]uint8, NT)
	limit := n
	if limit > NT {
		limit = NT
	}
	for i := 0; i < limit; i++ {
		if i == 3 {
			skip := int(r.ReadBits(2))
			for j := 0; j < skip && i+j < len(lengths); j++ {
				lengths[i+j] = 0
			}
			continue
		}
		lengths[i] = readEscapedLength(r)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return huffman.New(lengths, 5)
}

// readCTree reads the character/length tree (§4.10): a 9-bit code
// count n, then either a single 9-bit symbol (n==0) or n lengths decoded
// through the temporary tree, where temporary symbols 0/1/2 mean a zero-run
// of 1 / (4-bit value)+3 / (9-bit value)+20, symbol 3 is reserved, and
// symbols >=4 give an actual C-tree length of symbol-3.
func readCTree(r *bitio.Reader) (*huffman.Table, error) {
	n := int(r.ReadBits(9))
	if err := r.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		c := int(r.ReadBits(9))
		if err := r.Err(); err != nil {
			return nil, err
		}
		lengths := make([]uint8, NC)
		if c < NC {
			lengths[c] = 1
		}
		return huffman.New(lengths, 12)
	}

	pt, err := readPTTree(r)
	if err != nil {
		return nil, err
	}

	lengths := make([]uint8, NC)
	limit := n
	if limit > NC {
		limit = NC
	}
	i := 0
	for i < limit {
		c, err := pt.DecodeLSB(r)
		if err != nil {
			return nil, err
		}
		switch {
		case c == 0, c == 1, c == 2:
			var count int
			switch c {
			case 0:
				count = 1
			case 1:
				count = int(r.ReadBits(4)) + 3
			case 2:
				count = int(r.ReadBits(9)) + 20
			}
			for k := 0; k < count && i < len(lengths); k++ {
				lengths[i] = 0
				i++
			}
		case c == 3:
			// Reserved; treat as a single zero for robustness.
			lengths[i] = 0
			i++
		default:
			lengths[i] = uint8(c) - 3
			i++
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return huffman.New(lengths, 12)
}

// readPTree reads the position/distance tree (§4.10): a 4-bit code
// count n, then either a single 4-bit symbol (n==0) or n lengths each a
// 3-bit base with a unary extension past 7, same escape as the temporary
// tree but with no index-3 skip special case.
func readPTree(r *bitio.Reader, np int) (*huffman.Table, error) {
	n := int(r.ReadBits(4))
	if err := r.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		c := int(r.ReadBits(4))
		if err := r.Err(); err != nil {
			return nil, err
		}
		lengths := make([]uint8, np)
		if c < np {
			lengths[c] = 1
		}
		return huffman.New(lengths, 8)
	}

	lengths := make([]uint8, np)
	limit := n
	if limit > np {
		limit = np
	}
	for i := 0; i < limit; i++ {
		lengths[i] = readEscapedLength(r)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return huffman.New(lengths, 8)
}

// readEscapedLength reads one 3-bit-base/unary-extension code length, the
// scheme shared by the temporary and position trees.
func readEscapedLength(r *bitio.Reader) uint8 {
	length := uint8(r.ReadBits(3))
	if length == 7 {
		for r.ReadBits(1) != 0 {
			length++
		}
	}
	return length
}

// writeEscapedLength is the encoder-side mirror of readEscapedLength.
func writeEscapedLength(w *bitio.Writer, length uint8) {
	if length < 7 {
		w.WriteBits(uint32(length), 3)
		return
	}
	w.WriteBits(7, 3)
	for length > 7 {
		w.WriteBits(1, 1)
		length--
	}
	w.WriteBits(0, 1)
}
