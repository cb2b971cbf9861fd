package fse

import "testing"

func TestBuildTableSpreadsToOrigin(t *testing.T) {
	// Three symbols over a 32-slot table (accuracyLog 5): counts must sum
	// to the table size for the spread to land back on position 0.
	counts := []int16{16, 8, 8}
	table, err := BuildTable(counts, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.entries) != 32 {
		t.Fatalf("table size = %d, want 32", len(table.entries))
	}
	seen := map[uint8]int{}
	for _, e := range table.entries {
		seen[e.Symbol]++
	}
	if seen[0] != 16 || seen[1] != 8 || seen[2] != 8 {
		t.Fatalf("unexpected symbol distribution: %v", seen)
	}
}

func TestBuildTableLessThanOneProbability(t *testing.T) {
	// Symbol 2 has a "-1" (less-than-one) probability: it claims exactly
	// one high slot and nothing else.
	counts := []int16{15, 16, -1}
	table, err := BuildTable(counts, 5)
	if err != nil {
		t.Fatal(err)
	}
	count2 := 0
	for _, e := range table.entries {
		if e.Symbol == 2 {
			count2++
		}
	}
	if count2 != 1 {
		t.Fatalf("symbol 2 occupies %d slots, want 1", count2)
	}
}

func TestReverseBitReaderOrder(t *testing.T) {
	// buf = [0xAC, 0x05]: the last byte 0b00000101 has its sentinel at bit 2.
	buf := []byte{0xAC, 0x05}
	r, err := NewReverseBitReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	// Expected order: byte[1]=0x05=0b00000101, sentinel at bit 2, so first
	// bits read are bit1, bit0 of byte[1] -> 0, 1; then byte[0]=0xAC=
	// 0b10101100 read bit7..bit0 -> 1,0,1,0,1,1,0,0.
	want := []uint32{0, 1, 1, 0, 1, 0, 1, 1, 0, 0}
	for i, w := range want {
		got := r.ReadBit()
		if got != w {
			t.Fatalf("bit %d: got %d want %d", i, got, w)
		}
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
}

func TestReverseBitReaderRejectsAllZeroTrailer(t *testing.T) {
	if _, err := NewReverseBitReader([]byte{0x01, 0x00}); err == nil {
		t.Fatal("expected rejection of missing sentinel")
	}
}

func TestDecoderRoundTripsAgainstFixedState(t *testing.T) {
	counts := []int16{16, 8, 8}
	table, err := BuildTable(counts, 5)
	if err != nil {
		t.Fatal(err)
	}
	// A single sentinel byte is enough to prime a decoder (5 accuracy bits
	// plus sentinel fits in one byte read from the reverse reader).
	br, err := NewReverseBitReader([]byte{0x3F})
	if err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder(table, br)
	sym := dec.Symbol()
	if sym != table.entries[dec.state].Symbol {
		t.Fatalf("Symbol() inconsistent with current state")
	}
}
