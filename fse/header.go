package fse

import (
	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
)

// ReadNormalizedCounts parses an FSE table description from a forward
// (LSB-first) bit source: a 4-bit accuracy log offset by 5, then one
// normalized probability per symbol up to maxSymbol using the variable-width
// scheme from §4.8 — read bits_needed(remaining+1) bits per symbol,
// short or extended form depending on whether the peeked value falls below
// the threshold; a decoded probability of 0 arms a 2-bit (possibly chained)
// run-of-zeros gauge for the following symbols.
func ReadNormalizedCounts(r *bitio.Reader, maxSymbol int) ([]int16, uint, error) {
	accuracyLog := uint(r.ReadBits(4)) + minAccuracyLog
	if accuracyLog > maxAccuracyLog {
		return nil, 0, &errs.InvalidHeader{Message: "fse: accuracy log out of range"}
	}
	counts := make([]int16, maxSymbol+1)
	tableSize := int32(1) << accuracyLog
	remaining := tableSize + 1
	threshold := tableSize
	nbBits := accuracyLog + 1
	sym := 0
	previous0 := false

	for remaining > 1 && sym <= maxSymbol {
		if previous0 {
			zeroRun := 0
			for {
				v := int(r.ReadBits(2))
				zeroRun += v
				if v != 3 {
					break
				}
			}
			for i := 0; i < zeroRun; i++ {
				if sym > maxSymbol {
					return nil, 0, &errs.CorruptedData{Message: "fse: zero run overruns alphabet"}
				}
				counts[sym] = 0
				sym++
			}
			previous0 = false
			continue
		}

		max := 2*threshold - 1 - remaining
		peek := int32(r.PeekBits(nbBits))
		var value int32
		if peek&(threshold-1) < max {
			value = peek & (threshold - 1)
			r.SkipBits(uint(nbBits - 1))
		} else {
			value = peek & (2*threshold - 1)
			if value >= threshold {
				value -= max
			}
			r.SkipBits(uint(nbBits))
		}
		value--
		if value < 0 {
			remaining -= -value
		} else {
			remaining -= value
		}
		counts[sym] = int16(value)
		sym++
		previous0 = value == 0
		for remaining < threshold {
			nbBits--
			threshold >>= 1
		}
	}
	for ; sym <= maxSymbol; sym++ {
		counts[sym] = 0
	}
	return counts, accuracyLog, nil
}
