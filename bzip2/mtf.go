package bzip2

// moveToFront implements the move-to-front list used both for the Huffman
// table selector indices and the post-BWT symbol stream (§4.6).
type moveToFront struct {
	list []byte
}

func newMoveToFront(symbols []byte) *moveToFront {
	mtf := &moveToFront{list: make([]byte, len(symbols))}
	copy(mtf.list, symbols)
	return mtf
}

func newMoveToFrontRange(n int) *moveToFront {
	symbols := make([]byte, n)
	for i := range symbols {
		symbols[i] = byte(i)
	}
	return newMoveToFront(symbols)
}

// First returns the byte currently at the front of the list without
// modifying it, used to replicate a run of repeated front-of-list symbols.
func (m *moveToFront) First() byte { return m.list[0] }

// Decode moves list[rank] to the front and returns it.
func (m *moveToFront) Decode(rank int) byte {
	b := m.list[rank]
	copy(m.list[1:rank+1], m.list[:rank])
	m.list[0] = b
	return b
}

// Encode returns the rank of b in the list, moving b to the front as a side
// effect (the forward direction the encoder needs).
func (m *moveToFront) Encode(b byte) int {
	for i, c := range m.list {
		if c == b {
			copy(m.list[1:i+1], m.list[:i])
			m.list[0] = b
			return i
		}
	}
	panic("bzip2: symbol not present in move-to-front list")
}
