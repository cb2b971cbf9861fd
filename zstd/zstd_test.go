package zstd

import (
	"bytes"
	"testing"

	"github.com/nyquistlabs/archivekit/fse"
	"github.com/nyquistlabs/archivekit/ring"
)

// Hand-verified single-segment, single raw-block frame for "Hello": magic,
// descriptor 0x20 (single_segment, fcsFlag=0 -> 1-byte content size), content
// size byte 0x05, then a block header encoding last=1/type=raw/size=5 as the
// 21-bit field (1<<0)|(0<<1)|(5<<3) = 0x29, packed LE24 as (0x29,0x00,0x00).
func TestDecodeRawBlockFrame(t *testing.T) {
	frame := []byte{
		0x28, 0xB5, 0x2F, 0xFD,
		0x20,
		0x05,
		0x29, 0x00, 0x00,
		'H', 'e', 'l', 'l', 'o',
	}
	out, err := Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "Hello" {
		t.Fatalf("got %q, want %q", out, "Hello")
	}
}

// Hand-verified single-segment RLE-block frame decoding to "AAAA": block
// header encodes last=1/type=RLE/size=4 as (1)|(1<<1)|(4<<3) = 0x23, packed
// LE24 as (0x23,0x00,0x00), followed by the single repeated byte 'A'.
func TestDecodeRLEBlockFrame(t *testing.T) {
	frame := []byte{
		0x28, 0xB5, 0x2F, 0xFD,
		0x20,
		0x04,
		0x23, 0x00, 0x00,
		'A',
	}
	out, err := Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "AAAA" {
		t.Fatalf("got %q, want %q", out, "AAAA")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x00, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x00})
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecodeRejectsReservedBlockType(t *testing.T) {
	frame := []byte{
		0x28, 0xB5, 0x2F, 0xFD,
		0x20,
		0x00,
		// last=1, type=3 (reserved), size=0 -> 1 | (3<<1) = 7
		0x07, 0x00, 0x00,
	}
	if _, err := Decode(frame); err == nil {
		t.Fatal("expected error for reserved block type")
	}
}

func TestEncoderCompressionNotSupported(t *testing.T) {
	e := &Encoder{}
	if e.CompressionSupported() {
		t.Fatal("raw/RLE-only encoder must report CompressionSupported() == false")
	}
}

func TestEncodeDecodeRoundTripEmpty(t *testing.T) {
	frame := Encode(nil, &Encoder{})
	out, err := Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d bytes, want 0", len(out))
	}
}

func TestEncodeDecodeRoundTripMixed(t *testing.T) {
	data := append([]byte("the quick brown fox jumps over the lazy dog "), bytes.Repeat([]byte{0x42}, 40)...)
	data = append(data, []byte("and then some more varied trailing text.")...)

	frame := Encode(data, &Encoder{Checksum: true})
	out, err := Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(data))
	}
}

func TestEncodeDecodeRoundTripAllRLE(t *testing.T) {
	data := bytes.Repeat([]byte{0x7A}, 1000)
	frame := Encode(data, &Encoder{})
	out, err := Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch for RLE-only input")
	}
}

func TestEncodeDecodeRoundTripChecksumDetectsCorruption(t *testing.T) {
	data := []byte("checksum me please")
	frame := Encode(data, &Encoder{Checksum: true})
	frame[len(frame)-1] ^= 0xFF
	if _, err := Decode(frame); err == nil {
		t.Fatal("expected checksum mismatch to be detected")
	}
}

func TestWeightsToLengthsSimpleCase(t *testing.T) {
	// Two explicit weights {1,1} sum to 1+1=2, maxBits=1, remaining=0: no
	// implied symbol, both get length maxBits+1-w = 1.
	lengths, err := weightsToLengths([]uint8{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(lengths) != 2 || lengths[0] != 1 || lengths[1] != 1 {
		t.Fatalf("got %v, want [1 1]", lengths)
	}
}

func TestWeightsToLengthsImpliedSymbol(t *testing.T) {
	// Weight {2} alone sums to 2, maxBits=1, total=2, remaining=0... use a
	// case that needs an implied symbol: weight {1} sums to 1, maxBits=0 is
	// invalid (ceilLog2(1)=0), so total=1, remaining=0 too. Use {3,1}:
	// sum = 4+1 = 5, maxBits=3 (ceilLog2(5)=3), total=8, remaining=3 ->
	// implied weight = bits.Len32(3) = 2, giving three lengths total.
	lengths, err := weightsToLengths([]uint8{3, 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(lengths) != 3 {
		t.Fatalf("got %d lengths, want 3 (implied symbol appended)", len(lengths))
	}
	if lengths[0] != 1 || lengths[1] != 3 || lengths[2] != 2 {
		t.Fatalf("got %v, want [1 3 2]", lengths)
	}
}

func TestResolveOffsetRepeatSlots(t *testing.T) {
	rep := [3]uint32{1, 4, 8}
	if off := resolveOffset(&rep, 0, 0, 1); off != 1 {
		t.Fatalf("code0/litLen>0: got %d, want 1", off)
	}
	rep = [3]uint32{1, 4, 8}
	if off := resolveOffset(&rep, 1, 0, 1); off != 4 {
		t.Fatalf("code1: got %d, want 4", off)
	}
	if rep[0] != 4 || rep[1] != 1 {
		t.Fatalf("rep history after code1 = %v, want [4 1 8]", rep)
	}
}

func TestResolveOffsetDirectCode(t *testing.T) {
	rep := [3]uint32{1, 4, 8}
	// code=3, extra=0 -> off = (1<<3)+0 = 8
	off := resolveOffset(&rep, 3, 0, 1)
	if off != 8 {
		t.Fatalf("got %d, want 8", off)
	}
	if rep != [3]uint32{8, 1, 4} {
		t.Fatalf("rep history = %v, want [8 1 4]", rep)
	}
}

// code=2 with litLength==0 shifts to the idx==3 slot (rep[0]-1); this slot
// must rotate all three registers just like idx==2 does three lines above
// it, or rep[2] goes stale.
func TestResolveOffsetThirdRepeatSlotRotatesAllRegisters(t *testing.T) {
	rep := [3]uint32{10, 4, 8}
	off := resolveOffset(&rep, 2, 0, 0)
	if off != 9 {
		t.Fatalf("got %d, want 9", off)
	}
	if rep != [3]uint32{9, 10, 4} {
		t.Fatalf("rep history = %v, want [9 10 4]", rep)
	}
}

// buildReversedBitstream packs bits, in the order a ReverseBitReader's
// ReadBit would return them, into the sentinel-terminated buffer format
// that reader expects.
func buildReversedBitstream(payload []uint32) []byte {
	total := len(payload) + 1
	numBytes := (total + 7) / 8
	buf := make([]byte, numBytes)
	bitsSeq := make([]uint32, total)
	bitsSeq[0] = 1
	copy(bitsSeq[1:], payload)

	firstByteBits := total - (numBytes-1)*8
	byteIdx := numBytes - 1
	bitIdx := firstByteBits - 1
	for t := 0; t < total; t++ {
		if bitsSeq[t] == 1 {
			buf[byteIdx] |= 1 << uint(bitIdx)
		}
		bitIdx--
		if bitIdx < 0 {
			byteIdx--
			bitIdx = 7
		}
	}
	return buf
}

// TestDecodeSequencesFSEOffsetOrdering exercises a real FSE-coded sequence
// (offset mode "repeat", reusing a hand-built two-symbol table so its state
// transitions consume a nonzero number of bits) interleaved with RLE-coded
// literal-length and match-length fields that also carry nonzero extra-bit
// widths. Before the decode/Update reordering fix this miscounted which
// bits belonged to which field and desynced the shared reversed-bitstream
// cursor; this pins the correct interleaving end to end.
func TestDecodeSequencesFSEOffsetOrdering(t *testing.T) {
	// Two symbols (offset codes 5 and 6), each with normalized count 16 at
	// accuracy log 5 (table size 32): a perfectly balanced split gives every
	// state exactly 1 transition bit, so Update() always consumes exactly
	// one bit from the shared cursor.
	ofTable, err := fse.BuildTable([]int16{0, 0, 0, 0, 0, 16, 16}, 5)
	if err != nil {
		t.Fatal(err)
	}

	dict := ring.New(256)
	if _, err := dict.Write(bytes.Repeat([]byte{'Z'}, 100)); err != nil {
		t.Fatal(err)
	}

	st := newSequencesState()
	st.ofTable = ofTable

	body := []byte{
		0x01, // one sequence
		0x74, // LL=RLE, OF=Repeat, ML=RLE
		0x10, // LL RLE code 16 -> base 16, 1 extra bit
		0x20, // ML RLE code 32 -> base 35, 1 extra bit
		0x40, 0x23, // reversed bitstream (see payload derivation below)
	}
	// Read order once the loop is fixed: 5-bit initial OF state (3, which
	// this table maps to symbol 6), 1-bit OF Update, 1-bit LL extra, 1-bit
	// ML extra, 5-bit OF extra (code 6 needs code-1 = 5 extra bits).
	wantBitstream := buildReversedBitstream([]uint32{
		0, 0, 0, 1, 1, // initial state = 3
		0,    // OF Update's single transition bit
		1,    // LL extra bit -> llExtra = 1, litLen = 16+1 = 17
		0,    // ML extra bit -> mlExtra = 0, matchLen = 35+0 = 35
		0, 0, 0, 0, 0, // OF extra bits -> offExtra = 0, offset = 64
	})
	if !bytes.Equal(body[4:], wantBitstream) {
		t.Fatalf("test bitstream derivation mismatch: got %x, want %x", wantBitstream, body[4:])
	}

	lits := bytes.Repeat([]byte{'L'}, 17)
	out, err := decodeSequencesAndExecute(body, lits, dict, st)
	if err != nil {
		t.Fatal(err)
	}
	want := append(bytes.Repeat([]byte{'L'}, 17), bytes.Repeat([]byte{'Z'}, 35)...)
	if !bytes.Equal(out, want) {
		t.Fatalf("got %q, want %q (FSE decode/extra-bits ordering mismatch)", out, want)
	}
}
