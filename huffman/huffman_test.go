package huffman

import (
	"bytes"
	"testing"

	"github.com/nyquistlabs/archivekit/bitio"
)

func TestCanonicalRoundTrip(t *testing.T) {
	// RFC 1951 fixed literal/length-style length set, trimmed to a small
	// alphabet: lengths chosen so the Kraft sum is exactly 1.
	lengths := []uint8{3, 3, 3, 3, 3, 3, 4, 4}
	dec, err := New(lengths, 9)
	if err != nil {
		t.Fatal(err)
	}
	enc := NewEncodeTable(lengths)

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	symbols := []int{0, 7, 3, 6, 1, 2, 4, 5}
	for _, s := range symbols {
		enc.WriteLSB(w, s)
	}
	w.Flush()

	r := bitio.NewReader(&buf)
	for i, want := range symbols {
		got, err := dec.DecodeLSB(r)
		if err != nil {
			t.Fatalf("symbol %d: %v", i, err)
		}
		if int(got) != want {
			t.Errorf("symbol %d: got %d want %d", i, got, want)
		}
	}
}

func TestOverSubscribedRejected(t *testing.T) {
	// Every symbol length 1: Kraft sum = 2*(1/2) = 1 per symbol, with 3
	// symbols that's 1.5 > 1: over-subscribed.
	lengths := []uint8{1, 1, 1}
	if _, err := New(lengths, 9); err == nil {
		t.Fatal("expected over-subscribed rejection")
	}
}

func TestSingleSymbolDegenerate(t *testing.T) {
	lengths := []uint8{0, 1}
	if _, err := New(lengths, 9); err != nil {
		t.Fatalf("single-symbol length-1 tree should be accepted: %v", err)
	}
}

// TestBuildCanonicalLengthsRebalancesSkewedFrequencies uses a Fibonacci-like
// frequency distribution, the classic adversarial input for Huffman merges:
// it drives the deepest symbol's raw depth far past maxLen. Before
// rebalanceLengths existed, clamping every depth down to maxLen independently
// could pack more symbols in at maxLen than the Kraft inequality allows;
// feeding the result straight into New pins that it no longer does.
func TestBuildCanonicalLengthsRebalancesSkewedFrequencies(t *testing.T) {
	freqs := []int{1, 1, 2, 3, 5, 8, 13, 21, 34, 55}
	const maxLen = 4

	lengths := BuildCanonicalLengths(freqs, maxLen)
	for sym, l := range lengths {
		if l > maxLen {
			t.Fatalf("symbol %d has length %d, want <= %d", sym, l, maxLen)
		}
		if freqs[sym] > 0 && l == 0 {
			t.Fatalf("symbol %d has frequency %d but length 0", sym, freqs[sym])
		}
	}

	if _, err := New(lengths, 9); err != nil {
		t.Fatalf("rebalanced length set rejected by New: %v", err)
	}
}

func TestLongCodeFallsThroughToSlowPath(t *testing.T) {
	// fastBits=2 forces every code of length > 2 through the slow path.
	lengths := []uint8{1, 2, 3, 3}
	dec, err := New(lengths, 2)
	if err != nil {
		t.Fatal(err)
	}
	enc := NewEncodeTable(lengths)
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	enc.WriteLSB(w, 3)
	enc.WriteLSB(w, 2)
	w.Flush()
	r := bitio.NewReader(&buf)
	if got, err := dec.DecodeLSB(r); err != nil || got != 3 {
		t.Fatalf("got %d, %v, want 3", got, err)
	}
	if got, err := dec.DecodeLSB(r); err != nil || got != 2 {
		t.Fatalf("got %d, %v, want 2", got, err)
	}
}
