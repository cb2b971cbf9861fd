// Package lzw implements the Lempel-Ziv-Welch variants used by TIFF and GIF
// (§4.11): a growing code dictionary seeded with the 256 single-byte
// strings plus a clear code (256) and an end-of-information code (257), new
// entries starting at code 258, and a code width that grows from 9 to 12
// bits as the dictionary fills.
//
// TIFF packs codes MSB-first and uses "early change": the encoder widens
// the code width one step earlier than a naive reading of the dictionary
// size would suggest, and the decoder must widen one code earlier still to
// compensate for the one-entry lag inherent in LZW decoding (the decoder
// can only learn a new dictionary entry after decoding the code that
// implies it, one step behind the encoder). GIF packs codes LSB-first, uses
// standard (non-early-change) timing, and carries in-stream clear codes;
// TIFF has no in-stream clear and simply stops growing the dictionary once
// it is full.
//
// A historical bug in at least one well-known Go LZW port silently
// truncated output for certain inputs instead of decoding the full stream;
// this package's decode loop runs strictly until the requested output size
// is reached, an EOI code is seen, or the input is exhausted, with no other
// stopping heuristic (see decodeCore).
package lzw

import (
	"bytes"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
)

const (
	numLiterals = 256
	clearCode   = numLiterals
	eoiCode     = clearCode + 1
	firstCode   = eoiCode + 1
)

// Config selects a concrete LZW variant.
type Config struct {
	MinBits      int  // starting code width, in bits (9 for both TIFF and GIF)
	MaxBits      int  // maximum code width (12 for both TIFF and GIF)
	UseClearCode bool // GIF emits an initial clear code and resets on a full dictionary; TIFF does neither
	EarlyChange  bool // TIFF widens codes one step earlier than GIF to compensate for the decoder's one-entry lag
	MSBFirst     bool // TIFF packs codes most-significant-bit first; GIF least-significant-bit first
}

// TIFF is the LZW variant used by the TIFF image format's LZWDecode-style
// predictor-free stream: MSB-first, early-change, no in-stream clear codes.
var TIFF = Config{MinBits: 9, MaxBits: 12, UseClearCode: false, EarlyChange: true, MSBFirst: true}

// GIF is the LZW variant used by the GIF image format: LSB-first, standard
// timing, with clear codes resetting the dictionary both at the start of
// the stream and whenever it fills up.
var GIF = Config{MinBits: 9, MaxBits: 12, UseClearCode: true, EarlyChange: false, MSBFirst: false}

func (c Config) maxCode() int { return 1<<uint(c.MaxBits) - 1 }

// Decode decompresses data encoded under cfg. expectedSize is the exact
// output length, supplied out-of-band by the container format (§6:
// "decode(input, uncompressed_size) -> bytes | Error ... for formats where
// size is out-of-band"); the loop below never stops early on a size or
// iteration heuristic, only on reaching expectedSize, an EOI code, or
// exhausted input.
func Decode(data []byte, cfg Config, expectedSize int) ([]byte, error) {
	if cfg.MSBFirst {
		r := bitio.NewMSBReader(bytes.NewReader(data))
		return decodeCore(msbCodeReader{r}, cfg, expectedSize)
	}
	r := bitio.NewReader(bytes.NewReader(data))
	return decodeCore(lsbCodeReader{r}, cfg, expectedSize)
}

// Encode compresses data under cfg.
func Encode(data []byte, cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if cfg.MSBFirst {
		w := bitio.NewMSBWriter(&buf)
		if err := encodeCore(data, cfg, msbCodeWriter{w}); err != nil {
			return nil, err
		}
		if err := w.Flush(); err != nil {
			return nil, &errs.Io{Err: err}
		}
		return buf.Bytes(), nil
	}
	w := bitio.NewWriter(&buf)
	if err := encodeCore(data, cfg, lsbCodeWriter{w}); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, &errs.Io{Err: err}
	}
	return buf.Bytes(), nil
}

// codeReader abstracts the bit order (MSB for TIFF, LSB for GIF) behind a
// single fixed-width code read.
type codeReader interface {
	readCode(width uint) (int, error)
}

type msbCodeReader struct{ r *bitio.MSBReader }

func (a msbCodeReader) readCode(width uint) (int, error) {
	v := a.r.ReadBits(width)
	if err := a.r.Err(); err != nil {
		return 0, err
	}
	return v, nil
}

type lsbCodeReader struct{ r *bitio.Reader }

func (a lsbCodeReader) readCode(width uint) (int, error) {
	v := a.r.ReadBits(width)
	if err := a.r.Err(); err != nil {
		return 0, err
	}
	return int(v), nil
}

// codeWriter is the encode-side mirror of codeReader.
type codeWriter interface {
	writeCode(code int, width uint)
}

type msbCodeWriter struct{ w *bitio.MSBWriter }

func (a msbCodeWriter) writeCode(code int, width uint) { a.w.WriteBits(uint32(code), width) }

type lsbCodeWriter struct{ w *bitio.Writer }

func (a lsbCodeWriter) writeCode(code int, width uint) { a.w.WriteBits(uint32(code), width) }
