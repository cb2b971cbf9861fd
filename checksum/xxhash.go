package checksum

import "encoding/binary"

// xxHash32/64 constants exactly as documented by the xxHash reference
// implementation (§4.3: "must match the reference constants
// bit-for-bit").
const (
	prime32_1 uint32 = 2654435761
	prime32_2 uint32 = 2246822519
	prime32_3 uint32 = 3266489917
	prime32_4 uint32 = 668265263
	prime32_5 uint32 = 374761393

	prime64_1 uint64 = 11400714785074694791
	prime64_2 uint64 = 14029467366897019727
	prime64_3 uint64 = 1609587929392839161
	prime64_4 uint64 = 9650029242287828579
	prime64_5 uint64 = 2870177450012600261
)

func rotl32(x uint32, r uint) uint32 { return (x << r) | (x >> (32 - r)) }
func rotl64(x uint64, r uint) uint64 { return (x << r) | (x >> (64 - r)) }

// XXHash32 computes xxHash32 over an entire buffer with the given seed,
// matching the LZ4 frame checksum field.
func XXHash32(seed uint32, data []byte) uint32 {
	var h uint32
	n := len(data)
	if n >= 16 {
		v1 := seed + prime32_1 + prime32_2
		v2 := seed + prime32_2
		v3 := seed
		v4 := seed - prime32_1
		for len(data) >= 16 {
			v1 = xxh32Round(v1, binary.LittleEndian.Uint32(data[0:4]))
			v2 = xxh32Round(v2, binary.LittleEndian.Uint32(data[4:8]))
			v3 = xxh32Round(v3, binary.LittleEndian.Uint32(data[8:12]))
			v4 = xxh32Round(v4, binary.LittleEndian.Uint32(data[12:16]))
			data = data[16:]
		}
		h = rotl32(v1, 1) + rotl32(v2, 7) + rotl32(v3, 12) + rotl32(v4, 18)
	} else {
		h = seed + prime32_5
	}
	h += uint32(n)
	for len(data) >= 4 {
		h += binary.LittleEndian.Uint32(data[0:4]) * prime32_3
		h = rotl32(h, 17) * prime32_4
		data = data[4:]
	}
	for len(data) >= 1 {
		h += uint32(data[0]) * prime32_5
		h = rotl32(h, 11) * prime32_1
		data = data[1:]
	}
	h ^= h >> 15
	h *= prime32_2
	h ^= h >> 13
	h *= prime32_3
	h ^= h >> 16
	return h
}

func xxh32Round(acc, input uint32) uint32 {
	acc += input * prime32_2
	acc = rotl32(acc, 13)
	acc *= prime32_1
	return acc
}

// XXHash64 computes xxHash64 over an entire buffer with the given seed.
// Zstandard's frame checksum truncates this to its low 32 bits (§4.3).
func XXHash64(seed uint64, data []byte) uint64 {
	var h uint64
	n := len(data)
	if n >= 32 {
		v1 := seed + prime64_1 + prime64_2
		v2 := seed + prime64_2
		v3 := seed
		v4 := seed - prime64_1
		for len(data) >= 32 {
			v1 = xxh64Round(v1, binary.LittleEndian.Uint64(data[0:8]))
			v2 = xxh64Round(v2, binary.LittleEndian.Uint64(data[8:16]))
			v3 = xxh64Round(v3, binary.LittleEndian.Uint64(data[16:24]))
			v4 = xxh64Round(v4, binary.LittleEndian.Uint64(data[24:32]))
			data = data[32:]
		}
		h = rotl64(v1, 1) + rotl64(v2, 7) + rotl64(v3, 12) + rotl64(v4, 18)
		h = xxh64MergeRound(h, v1)
		h = xxh64MergeRound(h, v2)
		h = xxh64MergeRound(h, v3)
		h = xxh64MergeRound(h, v4)
	} else {
		h = seed + prime64_5
	}
	h += uint64(n)
	for len(data) >= 8 {
		k1 := xxh64Round(0, binary.LittleEndian.Uint64(data[0:8]))
		h ^= k1
		h = rotl64(h, 27)*prime64_1 + prime64_4
		data = data[8:]
	}
	if len(data) >= 4 {
		h ^= uint64(binary.LittleEndian.Uint32(data[0:4])) * prime64_1
		h = rotl64(h, 23)*prime64_2 + prime64_3
		data = data[4:]
	}
	for len(data) >= 1 {
		h ^= uint64(data[0]) * prime64_5
		h = rotl64(h, 11) * prime64_1
		data = data[1:]
	}
	h ^= h >> 33
	h *= prime64_2
	h ^= h >> 29
	h *= prime64_3
	h ^= h >> 32
	return h
}

func xxh64Round(acc, input uint64) uint64 {
	acc += input * prime64_2
	acc = rotl64(acc, 31)
	acc *= prime64_1
	return acc
}

func xxh64MergeRound(acc, val uint64) uint64 {
	val = xxh64Round(0, val)
	acc ^= val
	acc = acc*prime64_1 + prime64_4
	return acc
}

// XXHash32Digest is an incremental xxHash32 accumulator for streaming
// codecs that checksum as they go (LZ4 frame content checksum).
type XXHash32Digest struct {
	buf  []byte
	seed uint32
}

// NewXXHash32 returns an incremental xxHash32 accumulator. The
// implementation buffers the whole stream; this module's codecs are
// single-shot (§5), so there is no benefit to a constant-memory
// streaming state machine here.
func NewXXHash32(seed uint32) *XXHash32Digest { return &XXHash32Digest{seed: seed} }

func (d *XXHash32Digest) Update(p []byte) { d.buf = append(d.buf, p...) }
func (d *XXHash32Digest) Finalize() uint32 { return XXHash32(d.seed, d.buf) }
