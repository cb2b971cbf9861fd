// Package fse implements Finite State Entropy (tANS) table construction and
// decoding as used by Zstandard's sequences section and Huffman weight
// stream (§4.8, §9 "Shared entropy"). Like huffman and rangecoder it
// describes a table on the wire and then decodes a stream of symbols, but
// the state-machine arithmetic is unique to FSE so it is kept independent.
package fse

import (
	"math/bits"

	"github.com/nyquistlabs/archivekit/errs"
)

const (
	minAccuracyLog = 5
	maxAccuracyLog = 9
)

// Entry is one decode-table slot: the symbol that state maps to, how many
// bits to consume to find the next state, and the baseline added to those
// bits.
type Entry struct {
	Symbol   uint8
	NumBits  uint8
	Baseline uint16
}

// Table is a built FSE decoding table of size 2^AccuracyLog.
type Table struct {
	AccuracyLog uint
	entries     []Entry
}

// BuildTable constructs a decode table from normalized counts (§4.8
// "standard step-spread allocation"): symbols with count -1 ("less than
// one") get parked at the high end of the table first, then every other
// symbol is spread across the remaining slots with step =
// (size>>1)+(size>>3)+3, wrapping past already-claimed high slots.
func BuildTable(normCounts []int16, accuracyLog uint) (*Table, error) {
	if accuracyLog < minAccuracyLog || accuracyLog > maxAccuracyLog {
		return nil, &errs.InvalidHeader{Message: "fse: accuracy log out of range"}
	}
	tableSize := uint32(1) << accuracyLog
	entries := make([]Entry, tableSize)
	highThreshold := tableSize - 1

	symbolNext := make([]uint16, len(normCounts))
	for s, c := range normCounts {
		if c == -1 {
			entries[highThreshold].Symbol = uint8(s)
			highThreshold--
			symbolNext[s] = 1
		} else if c > 0 {
			symbolNext[s] = uint16(c)
		}
	}

	step := (tableSize >> 1) + (tableSize >> 3) + 3
	mask := tableSize - 1
	pos := uint32(0)
	for s, c := range normCounts {
		if c <= 0 {
			continue
		}
		for i := int16(0); i < c; i++ {
			entries[pos].Symbol = uint8(s)
			pos = (pos + step) & mask
			for pos > highThreshold {
				pos = (pos + step) & mask
			}
		}
	}
	if pos != 0 {
		return nil, &errs.CorruptedData{Message: "fse: symbol spread did not return to the origin"}
	}

	for i := uint32(0); i < tableSize; i++ {
		sym := entries[i].Symbol
		next := symbolNext[sym]
		symbolNext[sym]++
		nbBits := uint8(accuracyLog) - uint8(bits.Len16(next)-1)
		entries[i].NumBits = nbBits
		entries[i].Baseline = (next << nbBits) - uint16(tableSize)
	}
	return &Table{AccuracyLog: accuracyLog, entries: entries}, nil
}

// Decoder walks an FSE-coded symbol stream read from a reversed bitstream
// (§4.8 "sequence decode operates on a reversed bitstream").
type Decoder struct {
	table *Table
	br    *ReverseBitReader
	state uint32
}

// NewDecoder primes state by reading AccuracyLog bits from br.
func NewDecoder(t *Table, br *ReverseBitReader) *Decoder {
	return &Decoder{table: t, br: br, state: br.ReadBits(t.AccuracyLog)}
}

// Symbol returns the symbol the current state maps to, without consuming
// any bits. Callers that need extra value bits associated with the symbol
// (as Zstandard's sequence codes do) read them between Symbol and Update.
func (d *Decoder) Symbol() uint8 { return d.table.entries[d.state].Symbol }

// Update consumes the current state's NumBits and transitions to the next
// state.
func (d *Decoder) Update() error {
	e := d.table.entries[d.state]
	d.state = uint32(e.Baseline) + d.br.ReadBits(uint(e.NumBits))
	return d.br.Err()
}

// Decode returns the current symbol and advances the state machine, for
// callers (the Huffman weight stream) that have no extra bits to read
// in between.
func (d *Decoder) Decode() (uint8, error) {
	sym := d.Symbol()
	return sym, d.Update()
}
