package checksum

// adler32Mod is the modulus used by zlib's Adler-32 algorithm.
const adler32Mod = 65521

// Adler32 computes zlib's rolling checksum, used to identify DEFLATE preset
// dictionaries (§4.3).
type Adler32 struct {
	a, b uint32
}

// NewAdler32 returns an Adler32 accumulator primed to its initial state
// (a=1, b=0).
func NewAdler32() *Adler32 { return &Adler32{a: 1} }

// Update folds buf into the running checksum, processing in chunks short
// enough that a and b never overflow uint32 before a mod reduction,
// following the classical zlib algorithm.
func (c *Adler32) Update(buf []byte) {
	const nmax = 5552 // largest n such that 255*n*(n+1)/2 + (n+1)*(mod-1) < 2^32
	a, b := c.a, c.b
	for len(buf) > 0 {
		chunk := buf
		if len(chunk) > nmax {
			chunk = chunk[:nmax]
		}
		for _, c := range chunk {
			a += uint32(c)
			b += a
		}
		a %= adler32Mod
		b %= adler32Mod
		buf = buf[len(chunk):]
	}
	c.a, c.b = a, b
}

// Finalize returns the final Adler-32 value.
func (c *Adler32) Finalize() uint32 { return c.b<<16 | c.a }

// ComputeAdler32 is a single-shot convenience wrapper.
func ComputeAdler32(data []byte) uint32 {
	c := NewAdler32()
	c.Update(data)
	return c.Finalize()
}
