package lzw

// encodeCore runs a greedy longest-prefix-in-dictionary match over data,
// emitting one code per match and growing the dictionary exactly in step
// with what decodeCore will learn when reading the result back.
func encodeCore(data []byte, cfg Config, cw codeWriter) error {
	dict := newDictionary(cfg, true)

	if cfg.UseClearCode {
		cw.writeCode(clearCode, dict.currentBits())
	}
	if len(data) == 0 {
		cw.writeCode(eoiCode, dict.currentBits())
		return nil
	}

	current := data[0:1]
	for i := 1; i < len(data); i++ {
		candidate := append(append([]byte(nil), current...), data[i])
		if _, ok := dict.findCode(candidate); ok {
			current = candidate
			continue
		}

		code, _ := dict.findCode(current)
		cw.writeCode(code, dict.currentBits())

		if dict.isFull() {
			if cfg.UseClearCode {
				cw.writeCode(clearCode, dict.currentBits())
				dict.reset()
			}
			// TIFF has no in-stream clear: the dictionary simply stops
			// growing and every later match is resolved against what it
			// already holds.
		} else {
			dict.addStringEncode(candidate)
		}
		current = data[i : i+1]
	}

	code, _ := dict.findCode(current)
	cw.writeCode(code, dict.currentBits())
	cw.writeCode(eoiCode, dict.currentBits())
	return nil
}
