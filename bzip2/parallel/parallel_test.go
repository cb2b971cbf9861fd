package parallel

import (
	"bytes"
	"context"
	"testing"

	"github.com/nyquistlabs/archivekit/bzip2"
)

// pseudoData returns n bytes of low-periodicity filler: varied enough that
// the encoder's rotation sort resolves most comparisons in a handful of
// bytes rather than walking whole rotations, unlike a short repeated
// phrase stretched across multiple 100,000-byte blocks.
func pseudoData(n int) []byte {
	data := make([]byte, n)
	a, b := byte(37), byte(191)
	for i := range data {
		a, b = b, a+b*3+byte(i)
		data[i] = a ^ byte(i>>5)
	}
	return data
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := pseudoData(350000) // level 1 => 100,000-byte blocks, so 3+ blocks
	compressed, err := Compress(context.Background(), data, 1, 4)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	decoded, err := Decompress(context.Background(), compressed, 4)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(decoded), len(data))
	}
}

func TestCompressOutputDecodableBySequentialReader(t *testing.T) {
	data := pseudoData(250000)
	compressed, err := Compress(context.Background(), data, 1, 4)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	decoded, err := bzip2.Decode(compressed)
	if err != nil {
		t.Fatalf("sequential Decode of parallel-compressed stream: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatal("sequential decode of bit-stitched stream produced different content")
	}
}

func TestDecompressHandlesSequentiallyEncodedStream(t *testing.T) {
	data := pseudoData(220000)
	compressed, err := bzip2.Encode(data)
	if err != nil {
		t.Fatalf("sequential Encode: %v", err)
	}
	decoded, err := Decompress(context.Background(), compressed, 4)
	if err != nil {
		t.Fatalf("Decompress of sequentially-encoded stream: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatal("parallel decode of sequential stream produced different content")
	}
}

func TestRoundTripEmptyInput(t *testing.T) {
	compressed, err := Compress(context.Background(), nil, 1, 2)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	decoded, err := Decompress(context.Background(), compressed, 2)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty output, got %d bytes", len(decoded))
	}
}

func TestRoundTripSingleWorker(t *testing.T) {
	data := pseudoData(150000)
	compressed, err := Compress(context.Background(), data, 1, 1)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	decoded, err := Decompress(context.Background(), compressed, 1)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatal("single-worker round trip mismatch")
	}
}

func TestRoundTripManySmallBlocksDefaultConcurrency(t *testing.T) {
	// level 1 => 100,000-byte blocks; five-plus blocks exercises the
	// scanner's ability to find several block-magic occurrences in a row
	// and the worker pool's default (concurrency<=0 => GOMAXPROCS) path.
	data := pseudoData(520000)
	compressed, err := Compress(context.Background(), data, 1, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	decoded, err := Decompress(context.Background(), compressed, 0)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatal("multi-block round trip mismatch")
	}
}

func TestDecompressRejectsBadMagic(t *testing.T) {
	if _, err := Decompress(context.Background(), []byte("not a bzip2 stream"), 2); err == nil {
		t.Fatal("expected magic rejection")
	}
}

func TestDecompressRejectsCorruptedTrailerCRC(t *testing.T) {
	data := pseudoData(180000)
	compressed, err := Compress(context.Background(), data, 1, 2)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	corrupted := append([]byte(nil), compressed...)
	corrupted[len(corrupted)-1] ^= 0xff
	if _, err := Decompress(context.Background(), corrupted, 2); err == nil {
		t.Fatal("expected combined CRC mismatch to be rejected")
	}
}
