// Package lz4 implements the LZ4 block format, LZ4-HC match search, and the
// LZ4 frame container (§4.9, LZ4 frame format version 1.6.x).
package lz4

import (
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/ring"
)

const (
	minMatch    = 4
	extendedLen = 15 // token nibble value signaling "read more length bytes"
)

// DecodeBlock decodes one LZ4 block (§4.9 "Block format"): a sequence
// of (token, extended literal length?, literals, 2-byte LE offset, extended
// match length?) tuples, the last of which carries no match. dict supplies
// the back-reference window (carried across blocks in a frame, or freshly
// allocated for a single standalone block).
func DecodeBlock(body []byte, dict *ring.Buffer) ([]byte, error) {
	var out []byte
	pos := 0
	for pos < len(body) {
		token := body[pos]
		pos++

		litLen := int(token >> 4)
		if litLen == extendedLen {
			n, newPos, err := readExtendedLength(body, pos)
			if err != nil {
				return nil, err
			}
			litLen += n
			pos = newPos
		}
		if pos+litLen > len(body) {
			return nil, &errs.UnexpectedEof{Expected: "lz4 literals"}
		}
		literals := body[pos : pos+litLen]
		pos += litLen
		out = append(out, literals...)
		if _, err := dict.Write(literals); err != nil {
			return nil, err
		}

		if pos == len(body) {
			break // final sequence: literals only, no match follows
		}
		if pos+2 > len(body) {
			return nil, &errs.UnexpectedEof{Expected: "lz4 match offset"}
		}
		offset := int(body[pos]) | int(body[pos+1])<<8
		pos += 2
		if offset == 0 {
			return nil, &errs.CorruptedData{Message: "lz4: zero match offset"}
		}

		matchLen := int(token&0xF) + minMatch
		if token&0xF == extendedLen {
			n, newPos, err := readExtendedLength(body, pos)
			if err != nil {
				return nil, err
			}
			matchLen += n
			pos = newPos
		}

		var err error
		out, err = dict.CopyFromHistory(out, offset, matchLen)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readExtendedLength reads the "255-chain" extension bytes that follow a
// token nibble value of 15: accumulate 255 per byte until one less than 255
// is read, which is added in full and ends the chain.
func readExtendedLength(body []byte, pos int) (length, newPos int, err error) {
	for {
		if pos >= len(body) {
			return 0, 0, &errs.UnexpectedEof{Expected: "lz4 extended length"}
		}
		b := body[pos]
		pos++
		length += int(b)
		if b != 255 {
			break
		}
	}
	return length, pos, nil
}

// lzSeq is one LZ4 block sequence: a literal run followed by an optional
// match (omitted for the block's final sequence).
type lzSeq struct {
	litStart, litLen int
	offset, matchLen int
	isLast           bool
}

func encodeSeqs(data []byte, seqs []lzSeq) []byte {
	var out []byte
	for _, s := range seqs {
		litLen := s.litLen
		matchLenField := 0
		if !s.isLast {
			matchLenField = s.matchLen - minMatch
		}

		tokLit := litLen
		if tokLit > extendedLen {
			tokLit = extendedLen
		}
		tokMatch := matchLenField
		if !s.isLast && tokMatch > extendedLen {
			tokMatch = extendedLen
		}
		token := byte(tokLit<<4) | byte(tokMatch)
		out = append(out, token)
		if litLen >= extendedLen {
			out = appendExtendedLength(out, litLen-extendedLen)
		}
		out = append(out, data[s.litStart:s.litStart+litLen]...)

		if s.isLast {
			continue
		}
		out = append(out, byte(s.offset), byte(s.offset>>8))
		if matchLenField >= extendedLen {
			out = appendExtendedLength(out, matchLenField-extendedLen)
		}
	}
	return out
}

func appendExtendedLength(out []byte, extra int) []byte {
	for extra >= 255 {
		out = append(out, 255)
		extra -= 255
	}
	return append(out, byte(extra))
}
