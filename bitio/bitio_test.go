package bitio

import (
	"bytes"
	"testing"
)

func TestLSBRoundTrip(t *testing.T) {
	widths := []uint{1, 3, 8, 13, 16, 24, 32, 5, 2}
	values := []uint32{1, 5, 0xAB, 0x1234, 0xFFFF, 0xABCDEF, 0xDEADBEEF, 17, 3}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i, v := range values {
		w.WriteBits(v, widths[i])
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	for i, want := range values {
		got := r.ReadBits(widths[i])
		mask := uint32((uint64(1) << widths[i]) - 1)
		if got != want&mask {
			t.Errorf("bit %d: got %x want %x", i, got, want&mask)
		}
	}
}

func TestLSBFlushZeroPads(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(0x7, 3) // 3 bits used, 5 bits of padding expected
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 1 {
		t.Fatalf("expected 1 byte, got %d", buf.Len())
	}
	if buf.Bytes()[0] != 0x07 {
		t.Errorf("expected zero-padded 0x07, got %#x", buf.Bytes()[0])
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(0b101, 3)
	w.WriteBits(0b11001, 5)
	w.Flush()

	r := NewReader(&buf)
	p1 := r.PeekBits(3)
	p2 := r.PeekBits(3)
	if p1 != p2 {
		t.Fatalf("peek not idempotent: %v != %v", p1, p2)
	}
	r.SkipBits(3)
	if got := r.ReadBits(5); got != 0b11001 {
		t.Errorf("got %05b want %05b", got, 0b11001)
	}
}

func TestMSBRoundTrip(t *testing.T) {
	widths := []uint{1, 3, 8, 13, 16, 24}
	values := []uint32{1, 5, 0xAB, 0x1234, 0xFFFF, 0xABCDEF}

	var buf bytes.Buffer
	w := NewMSBWriter(&buf)
	for i, v := range values {
		w.WriteBits(v, widths[i])
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewMSBReader(&buf)
	for i, want := range values {
		got := uint32(r.ReadBits64(widths[i]))
		mask := uint32((uint64(1) << widths[i]) - 1)
		if got != want&mask {
			t.Errorf("bit %d: got %x want %x", i, got, want&mask)
		}
	}
}

func TestLSBUnexpectedEOF(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFF}))
	r.ReadBits(8)
	r.ReadBits(4) // past end
	if r.Err() == nil {
		t.Fatal("expected error on short read")
	}
}
