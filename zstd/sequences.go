package zstd

import (
	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/fse"
	"github.com/nyquistlabs/archivekit/huffman"
	"github.com/nyquistlabs/archivekit/ring"
)

const (
	seqModePredefined = 0
	seqModeRLE        = 1
	seqModeFSE        = 2
	seqModeRepeat     = 3
)

// sequencesState carries everything that persists across blocks within one
// frame: the repeat-offset history and, for "repeat" compression mode, the
// most recently built FSE table per symbol class and the most recently
// built Huffman table for treeless literals.
type sequencesState struct {
	rep [3]uint32

	llTable *fse.Table
	ofTable *fse.Table
	mlTable *fse.Table

	huffman *huffman.Table
}

func newSequencesState() *sequencesState {
	return &sequencesState{rep: [3]uint32{1, 4, 8}}
}

// codeSource yields a stream of FSE symbol codes, or a fixed RLE code, for
// one of the three sequence fields.
type codeSource struct {
	mode      int
	rleSymbol uint8
	dec       *fse.Decoder
}

func (c *codeSource) Symbol() uint8 {
	if c.mode == seqModeRLE {
		return c.rleSymbol
	}
	return c.dec.Symbol()
}

func (c *codeSource) Update() error {
	if c.mode == seqModeRLE {
		return nil
	}
	return c.dec.Update()
}

func readSeqHeaderCount(body []byte) (numSeq, headerLen int, err error) {
	if len(body) == 0 {
		return 0, 0, &errs.UnexpectedEof{Expected: "zstd sequences count"}
	}
	b0 := int(body[0])
	switch {
	case b0 == 0:
		return 0, 1, nil
	case b0 < 128:
		return b0, 1, nil
	case b0 < 255:
		if len(body) < 2 {
			return 0, 0, &errs.UnexpectedEof{Expected: "zstd sequences count"}
		}
		return (b0-128)<<8 + int(body[1]), 2, nil
	default:
		if len(body) < 3 {
			return 0, 0, &errs.UnexpectedEof{Expected: "zstd sequences count"}
		}
		return int(body[1]) + int(body[2])<<8 + 0x7F00, 3, nil
	}
}

// buildModeTable constructs (or reuses) the FSE decode table for one
// sequence symbol class, advancing r past whatever table description the
// mode requires (§4.8 "Sequences section").
func buildModeTable(r *bitio.Reader, mode int, defaultDist []int16, defaultLog uint, maxSymbol int, prev *fse.Table) (*fse.Table, uint8, error) {
	switch mode {
	case seqModePredefined:
		t, err := fse.BuildTable(defaultDist, defaultLog)
		return t, 0, err
	case seqModeRLE:
		sym := byte(r.ReadBits(8))
		if r.Err() != nil {
			return nil, 0, r.Err()
		}
		return nil, sym, nil
	case seqModeRepeat:
		if prev == nil {
			return nil, 0, &errs.CorruptedData{Message: "zstd: repeat sequence mode with no previous table"}
		}
		return prev, 0, nil
	case seqModeFSE:
		counts, accLog, err := fse.ReadNormalizedCounts(r, maxSymbol)
		if err != nil {
			return nil, 0, err
		}
		t, err := fse.BuildTable(counts, accLog)
		return t, 0, err
	default:
		return nil, 0, &errs.CorruptedData{Message: "zstd: invalid sequence compression mode"}
	}
}

const (
	llMaxSymbol = 35
	mlMaxSymbol = 52
	ofMaxSymbol = 31
)

// decodeSequencesAndExecute parses the sequences section following a
// block's literals, decodes each sequence from the reversed bitstream, and
// executes the literal-copy/match-copy steps against dict, returning the
// bytes this block produces.
func decodeSequencesAndExecute(body []byte, lits []byte, dict *ring.Buffer, st *sequencesState) ([]byte, error) {
	numSeq, headerLen, err := readSeqHeaderCount(body)
	if err != nil {
		return nil, err
	}
	litPos := 0
	if numSeq == 0 {
		out, err := appendLiterals(nil, dict, lits, &litPos, len(lits))
		return out, err
	}
	if len(body) < headerLen+1 {
		return nil, &errs.UnexpectedEof{Expected: "zstd sequences mode byte"}
	}
	modeByte := body[headerLen]
	llMode := int(modeByte>>6) & 0x3
	ofMode := int(modeByte>>4) & 0x3
	mlMode := int(modeByte>>2) & 0x3

	fr := bitio.NewReader(&sliceReader{body[headerLen+1:]})
	llTable, llRLE, err := buildModeTable(fr, llMode, llDefaultDist, llDefaultAccuracyLog, llMaxSymbol, st.llTable)
	if err != nil {
		return nil, err
	}
	ofTable, ofRLE, err := buildModeTable(fr, ofMode, ofDefaultDist, ofDefaultAccuracyLog, ofMaxSymbol, st.ofTable)
	if err != nil {
		return nil, err
	}
	mlTable, mlRLE, err := buildModeTable(fr, mlMode, mlDefaultDist, mlDefaultAccuracyLog, mlMaxSymbol, st.mlTable)
	if err != nil {
		return nil, err
	}
	if llMode != seqModeRLE {
		st.llTable = llTable
	}
	if ofMode != seqModeRLE {
		st.ofTable = ofTable
	}
	if mlMode != seqModeRLE {
		st.mlTable = mlTable
	}

	// The forward reader consumed whole bytes only via ReadBits(8) (RLE) or
	// FSE table descriptions that end on an arbitrary bit; the bitstream
	// payload always starts at the next byte boundary.
	fr.AlignToByte()
	tableBytes := int(fr.BytesRead())
	bitstreamStart := headerLen + 1 + tableBytes
	if bitstreamStart > len(body) {
		return nil, &errs.UnexpectedEof{Expected: "zstd sequences bitstream"}
	}
	br, err := fse.NewReverseBitReader(body[bitstreamStart:])
	if err != nil {
		return nil, err
	}

	llSrc := &codeSource{mode: llMode, rleSymbol: llRLE, dec: newFSEDecoderIfNeeded(llMode, llTable, br)}
	ofSrc := &codeSource{mode: ofMode, rleSymbol: ofRLE, dec: newFSEDecoderIfNeeded(ofMode, ofTable, br)}
	mlSrc := &codeSource{mode: mlMode, rleSymbol: mlRLE, dec: newFSEDecoderIfNeeded(mlMode, mlTable, br)}

	var out []byte
	for i := 0; i < numSeq; i++ {
		// Bit order on the reversed stream is fixed and must not be
		// reshuffled: each FSE state is advanced (symbol, then that
		// symbol's NumBits consumed to find the next state) in OF, ML, LL
		// order, and only afterward are the per-field extra-value bits
		// read, in LL, ML, OF order. All six reads share one bit cursor,
		// so decoding any of them out of this order desyncs every sequence
		// after the first with a nonzero bit width.
		ofCode := ofSrc.Symbol()
		mlCode := mlSrc.Symbol()
		llCode := llSrc.Symbol()

		if err := ofSrc.Update(); err != nil {
			return out, err
		}
		if err := mlSrc.Update(); err != nil {
			return out, err
		}
		if err := llSrc.Update(); err != nil {
			return out, err
		}

		llExtra := br.ReadBits(uint(llBits[llCode]))
		mlExtra := br.ReadBits(uint(mlBits[mlCode]))
		var offExtra uint32
		if ofCode >= 3 {
			offExtra = br.ReadBits(uint(ofCode - 1))
		}
		if br.Err() != nil {
			return out, br.Err()
		}

		litLen := int(llBase[llCode]) + int(llExtra)
		matchLen := int(mlBase[mlCode]) + int(mlExtra)
		offset := resolveOffset(&st.rep, ofCode, offExtra, litLen)

		out, err = appendLiterals(out, dict, lits, &litPos, litLen)
		if err != nil {
			return out, err
		}

		out, err = dict.CopyFromHistory(out, int(offset), matchLen)
		if err != nil {
			return out, err
		}
	}
	if litPos > len(lits) {
		return out, &errs.CorruptedData{Message: "zstd: sequences consumed more literals than were produced"}
	}
	out, err = appendLiterals(out, dict, lits, &litPos, len(lits)-litPos)
	if err != nil {
		return out, err
	}
	return out, nil
}

func newFSEDecoderIfNeeded(mode int, table *fse.Table, br *fse.ReverseBitReader) *fse.Decoder {
	if mode == seqModeRLE {
		return nil
	}
	return fse.NewDecoder(table, br)
}

// appendLiterals copies the next n bytes of the literals array (tracked via
// pos, owned by the caller) into out and dict.
func appendLiterals(out []byte, dict *ring.Buffer, lits []byte, pos *int, n int) ([]byte, error) {
	if n < 0 || *pos+n > len(lits) {
		return out, &errs.CorruptedData{Message: "zstd: literal length overruns literals array"}
	}
	chunk := lits[*pos : *pos+n]
	*pos += n
	out = append(out, chunk...)
	if _, err := dict.Write(chunk); err != nil {
		return out, err
	}
	return out, nil
}

// resolveOffset converts an offset FSE code (plus any extra bits already
// read for codes >= 3) into an actual distance, updating the repeat-offset
// history (§4.8 "Repeat offsets"): codes 0-2 select a repeat slot,
// shifted by one when litLength == 0; codes >= 3 give a literal offset via
// (1<<code) + extra bits, where the extra-bit count is code-1.
func resolveOffset(rep *[3]uint32, code uint8, extra uint32, litLength int) uint32 {
	if code >= 3 {
		off := (uint32(1) << code) + extra
		rep[2], rep[1], rep[0] = rep[1], rep[0], off
		return off
	}
	idx := int(code)
	if litLength == 0 {
		idx++
	}
	var off uint32
	switch idx {
	case 0:
		off = rep[0]
	case 1:
		off = rep[1]
		rep[1] = rep[0]
	case 2:
		off = rep[2]
		rep[2] = rep[1]
		rep[1] = rep[0]
	default: // idx == 3: code == 2 with litLength == 0
		off = rep[0] - 1
		if off == 0 {
			off = 1
		}
		rep[2] = rep[1]
		rep[1] = rep[0]
	}
	rep[0] = off
	return off
}
