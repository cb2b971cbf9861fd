package lzw

// dictionary is the shared code table used by both encode and decode: codes
// 0..255 are the single literal bytes, 256 is the clear code, 257 is EOI,
// and 258.. grow as strings are learned. The encoder additionally keeps a
// reverse string-to-code index for its longest-match search; the decoder
// never needs one.
type dictionary struct {
	cfg     Config
	table   [][]byte
	reverse map[string]int // nil for a decode-only dictionary
	next    int
	bits    uint
}

func newDictionary(cfg Config, forEncode bool) *dictionary {
	d := &dictionary{cfg: cfg, table: make([][]byte, cfg.maxCode()+1)}
	if forEncode {
		d.reverse = make(map[string]int, cfg.maxCode()+1)
	}
	d.reset()
	return d
}

func (d *dictionary) reset() {
	for i := 0; i < numLiterals; i++ {
		d.table[i] = []byte{byte(i)}
	}
	d.table[clearCode] = nil
	d.table[eoiCode] = nil
	if d.reverse != nil {
		for k := range d.reverse {
			delete(d.reverse, k)
		}
		for i := 0; i < numLiterals; i++ {
			d.reverse[string(d.table[i])] = i
		}
	}
	d.next = firstCode
	d.bits = uint(d.cfg.MinBits)
}

func (d *dictionary) get(code int) []byte { return d.table[code] }

func (d *dictionary) nextCode() int { return d.next }

func (d *dictionary) currentBits() uint { return d.bits }

func (d *dictionary) isFull() bool { return d.next > d.cfg.maxCode() }

func (d *dictionary) findCode(s []byte) (int, bool) {
	c, ok := d.reverse[string(s)]
	return c, ok
}

// addStringDecode records a newly-learned string on the decode side and, if
// the dictionary has room, grows it by one entry before possibly widening
// the code width. The decoder widens one code earlier than the encoder
// under early-change timing to compensate for its one-entry lag: it can
// only learn a string after decoding the code that implies it, one
// iteration behind the encoder that already knew the string when it chose
// the code width to write with.
func (d *dictionary) addStringDecode(s []byte) {
	if d.isFull() {
		return
	}
	d.table[d.next] = s
	d.next++
	if d.bits >= uint(d.cfg.MaxBits) {
		return
	}
	var threshold int
	if d.cfg.EarlyChange {
		threshold = (1 << d.bits) - 1
	} else {
		threshold = 1 << d.bits
	}
	if d.next >= threshold {
		d.bits++
	}
}

// addStringEncode is the encode-side mirror of addStringDecode, with the
// complementary threshold so both sides change width in lockstep despite
// the decoder's one-entry lag.
func (d *dictionary) addStringEncode(s []byte) {
	if d.isFull() {
		return
	}
	code := d.next
	d.table[code] = s
	if d.reverse != nil {
		d.reverse[string(s)] = code
	}
	d.next++
	if d.bits >= uint(d.cfg.MaxBits) {
		return
	}
	var threshold int
	if d.cfg.EarlyChange {
		threshold = 1 << d.bits
	} else {
		threshold = (1 << d.bits) + 1
	}
	if d.next >= threshold {
		d.bits++
	}
}
