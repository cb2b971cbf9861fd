package lzw

import "github.com/nyquistlabs/archivekit/errs"

// decodeCore runs the code stream through a dictionary until expectedSize
// bytes have been produced, an EOI code is read, or the input runs out.
// There is no other termination condition: in particular this loop never
// stops because a match happened to land near expectedSize or because some
// fixed number of codes were consumed, the historical failure mode this
// package is written to avoid.
func decodeCore(cr codeReader, cfg Config, expectedSize int) ([]byte, error) {
	dict := newDictionary(cfg, false)
	out := make([]byte, 0, expectedSize)
	prevCode := -1

	for len(out) < expectedSize {
		code, err := cr.readCode(dict.currentBits())
		if err != nil {
			return nil, err
		}

		if code == clearCode {
			if !cfg.UseClearCode {
				return nil, &errs.InvalidHeader{Message: "lzw: clear code not valid for this variant"}
			}
			dict.reset()
			prevCode = -1
			continue
		}
		if code == eoiCode {
			break
		}

		var str []byte
		switch {
		case code < dict.nextCode():
			str = dict.get(code)
		case code == dict.nextCode() && prevCode != -1:
			// The classic KωK case: the code names the very entry the
			// decoder is about to learn. It always expands to the
			// previous string followed by that string's own first byte.
			prev := dict.get(prevCode)
			str = append(append([]byte(nil), prev...), prev[0])
		default:
			return nil, &errs.CorruptedData{Message: "lzw: invalid code"}
		}

		out = append(out, str...)

		if prevCode != -1 && !dict.isFull() {
			prev := dict.get(prevCode)
			entry := append(append([]byte(nil), prev...), str[0])
			dict.addStringDecode(entry)
		}
		prevCode = code
	}

	if len(out) > expectedSize {
		out = out[:expectedSize]
	}
	return out, nil
}
