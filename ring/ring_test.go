package ring

import (
	"bytes"
	"testing"
)

func TestOverlapCopyRepeats(t *testing.T) {
	b := New(4096)
	pattern := []byte("abcd")
	b.Write(pattern)

	var out []byte
	out, err := b.CopyFromHistory(out, len(pattern), len(pattern)*3)
	if err != nil {
		t.Fatal(err)
	}
	want := bytes.Repeat(pattern, 3)
	if !bytes.Equal(out, want) {
		t.Errorf("got %q want %q", out, want)
	}
}

func TestInvalidDistance(t *testing.T) {
	b := New(4096)
	b.Write([]byte("ab"))
	if _, err := b.CopyFromHistory(nil, 0, 1); err == nil {
		t.Fatal("expected error for zero distance")
	}
	if _, err := b.CopyFromHistory(nil, 5, 1); err == nil {
		t.Fatal("expected error for distance exceeding history")
	}
}

func TestPreloadDictionary(t *testing.T) {
	b := New(16)
	b.PreloadDictionary([]byte("0123456789ABCDEF"))
	if b.Len() != 16 {
		t.Fatalf("expected full preload, got %d", b.Len())
	}
	out, err := b.CopyFromHistory(nil, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 'F' {
		t.Errorf("expected last preloaded byte F, got %q", out[0])
	}
}

func TestNonPowerOfTwoPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two capacity")
		}
	}()
	New(1000)
}
