// Package tablecache memoizes constructed canonical-Huffman decode tables
// (§9 "Fast memoized tables"): building a huffman.Table walks and
// sorts every used symbol, which is wasted work when an archive holds many
// members whose dynamic Huffman blocks declare the identical set of code
// lengths (common for DEFLATE members produced by the same encoder run, and
// for adjacent LZH blocks in a freshly-compressed file). Keyed by a hash of
// the per-symbol code lengths plus the fastBits parameter a caller
// built it with, since two callers asking for different fastBits are not
// interchangeable.
package tablecache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nyquistlabs/archivekit/checksum"
	"github.com/nyquistlabs/archivekit/huffman"
)

// DefaultSize is the number of distinct tables kept resident; chosen large
// enough to cover a ZIP/LZH archive with a few hundred small members
// without growing unbounded for pathological inputs.
const DefaultSize = 256

// HuffmanTables is an LRU cache of constructed huffman.Table values.
type HuffmanTables struct {
	cache *lru.Cache[uint64, *huffman.Table]
}

// NewHuffmanTables returns a cache holding up to size entries. A size <= 0
// falls back to DefaultSize.
func NewHuffmanTables(size int) *HuffmanTables {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[uint64, *huffman.Table](size)
	if err != nil {
		// Only returned by golang-lru for size <= 0, which is excluded above.
		panic(err)
	}
	return &HuffmanTables{cache: c}
}

// key hashes the code-length description plus fastBits into a single
// lookup key. CRC-64 (already implemented for XZ's stream checksum) is
// reused here purely as a fast, good-enough hash. Get compares keys only,
// so two length sets whose keys collide share whichever table was cached
// first.
func key(lengths []uint8, fastBits uint) uint64 {
	h := checksum.NewCRC64()
	h.Update(lengths)
	h.Update([]byte{byte(fastBits)})
	return h.Finalize()
}

// Get returns a cached table for lengths/fastBits if one exists, building
// and storing it via New on a miss.
func (c *HuffmanTables) Get(lengths []uint8, fastBits uint) (*huffman.Table, error) {
	k := key(lengths, fastBits)
	if t, ok := c.cache.Get(k); ok {
		return t, nil
	}
	t, err := huffman.New(lengths, fastBits)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, t)
	return t, nil
}

// Len reports the number of tables currently cached.
func (c *HuffmanTables) Len() int { return c.cache.Len() }

// Purge empties the cache.
func (c *HuffmanTables) Purge() { c.cache.Purge() }
