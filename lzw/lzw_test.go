package lzw

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, cfg Config, data []byte) []byte {
	t.Helper()
	compressed, err := Encode(data, cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(compressed, cfg, len(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(data))
	}
	return compressed
}

func TestTIFFRoundTripShortStrings(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "abc", "aaaa", "abcabcabc", "Hello, World!"} {
		roundTrip(t, TIFF, []byte(s))
	}
}

func TestGIFRoundTripShortStrings(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "abc", "aaaa", "abcabcabc", "Hello, World!"} {
		roundTrip(t, GIF, []byte(s))
	}
}

// TestTIFFNoTruncationRegression is the 310-byte fixture from the historical
// truncation bug this package is written to avoid: decoding must produce
// the full input, not a prefix of it.
func TestTIFFNoTruncationRegression(t *testing.T) {
	data := bytes.Repeat([]byte("This is a test of compression! "), 10)
	if len(data) != 310 {
		t.Fatalf("fixture length = %d, want 310", len(data))
	}
	compressed, err := Encode(data, TIFF)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decode(compressed, TIFF, len(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 310 {
		t.Fatalf("decoded length = %d, want 310", len(out))
	}
	if !bytes.Equal(out, data) {
		t.Fatal("decoded content does not match original")
	}
}

func TestRoundTripRepeatingPattern(t *testing.T) {
	data := bytes.Repeat([]byte("AB"), 2000)
	roundTrip(t, TIFF, data)
	roundTrip(t, GIF, data)
}

func TestRoundTripAllSameByte(t *testing.T) {
	for _, n := range []int{1, 500, 1000, 5000} {
		data := bytes.Repeat([]byte{0x41}, n)
		roundTrip(t, TIFF, data)
		roundTrip(t, GIF, data)
	}
}

func TestRoundTripAllByteValues(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	roundTrip(t, TIFF, data)
	roundTrip(t, GIF, data)
}

func TestRoundTripIncrementalRuns(t *testing.T) {
	var data []byte
	for v := 0; v < 256; v++ {
		data = append(data, bytes.Repeat([]byte{byte(v)}, 10)...)
	}
	roundTrip(t, TIFF, data)
	roundTrip(t, GIF, data)
}

func TestRoundTripBoundarySizes(t *testing.T) {
	sizes := []int{1, 10, 50, 100, 255, 256, 257, 500, 1000, 4095, 4096, 4097}
	for _, n := range sizes {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i * 37 % 256)
		}
		roundTrip(t, TIFF, data)
		roundTrip(t, GIF, data)
	}
}

// TestRoundTripDictionaryOverflow exercises codes past the 12-bit ceiling
// (4096 entries), forcing TIFF to stop growing its table and GIF to emit an
// in-stream clear code and reset.
func TestRoundTripDictionaryOverflow(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 2000)
	roundTrip(t, TIFF, data)
	roundTrip(t, GIF, data)
}

func TestDecodeRejectsClearCodeForTIFF(t *testing.T) {
	// A lone clear code followed by EOI, MSB-packed at the starting width.
	gifMSB := GIF
	gifMSB.MSBFirst = true
	data, err := Encode(nil, gifMSB)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data, TIFF, 1); err == nil {
		t.Fatal("expected TIFF decode to reject a GIF-framed clear code")
	}
}

func TestEncodeGIFEmitsLeadingClearCode(t *testing.T) {
	compressed, err := Encode([]byte("a"), GIF)
	if err != nil {
		t.Fatal(err)
	}
	r := compressed
	if len(r) == 0 {
		t.Fatal("expected non-empty output")
	}
	// GIF packs LSB-first at the 9-bit starting width; the clear code
	// (256) occupies the low 9 bits of the first two bytes.
	first := uint32(r[0]) | uint32(r[1])<<8
	if code := first & 0x1ff; code != clearCode {
		t.Fatalf("leading code = %d, want clear code %d", code, clearCode)
	}
}

func TestEncodeTIFFNeverEmitsClearCode(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, 10000)
	compressed, err := Encode(data, TIFF)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(compressed, TIFF, len(data)); err != nil {
		t.Fatalf("TIFF decode of its own all-zero stream failed: %v", err)
	}
}
