package rangecoder

import (
	"bytes"
	"testing"
)

func TestBitRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	probs := NewProbs(1)
	bits := []uint32{0, 1, 1, 0, 0, 0, 1, 1, 1, 0}
	for _, b := range bits {
		enc.EncodeBit(&probs[0], b)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	dprobs := NewProbs(1)
	for i, want := range bits {
		got := dec.DecodeBit(&dprobs[0])
		if got != want {
			t.Errorf("bit %d: got %d want %d", i, got, want)
		}
	}
}

func TestDirectBitsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	values := []uint32{0, 1, 5, 31, 1023}
	widths := []uint{1, 1, 3, 5, 10}
	for i, v := range values {
		enc.EncodeDirectBits(v, widths[i])
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range values {
		got := dec.DecodeDirectBits(widths[i])
		if got != want {
			t.Errorf("value %d: got %d want %d", i, got, want)
		}
	}
}

func TestBitTreeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	probs := NewProbs(1 << 4)
	symbols := []uint32{0, 15, 7, 8, 1}
	for _, s := range symbols {
		enc.BitTreeEncode(probs, 4, s)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	dprobs := NewProbs(1 << 4)
	for i, want := range symbols {
		got := dec.BitTreeDecode(dprobs, 4)
		if got != want {
			t.Errorf("symbol %d: got %d want %d", i, got, want)
		}
	}
}

func TestBitTreeReverseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	probs := NewProbs(1 << 4)
	symbols := []uint32{0, 15, 7, 8, 1}
	for _, s := range symbols {
		enc.BitTreeReverseEncode(probs, 4, s)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	dprobs := NewProbs(1 << 4)
	for i, want := range symbols {
		got := dec.BitTreeReverseDecode(dprobs, 4)
		if got != want {
			t.Errorf("symbol %d: got %d want %d", i, got, want)
		}
	}
}

func TestRejectsNonZeroLeadByte(t *testing.T) {
	if _, err := NewDecoder(bytes.NewReader([]byte{1, 0, 0, 0, 0})); err == nil {
		t.Fatal("expected rejection of non-zero lead byte")
	}
}

func TestRejectsShortPrelude(t *testing.T) {
	if _, err := NewDecoder(bytes.NewReader([]byte{0, 0, 0})); err == nil {
		t.Fatal("expected rejection of truncated prelude")
	}
}
