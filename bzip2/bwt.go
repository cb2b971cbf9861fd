package bzip2

import "bytes"

// inverseBWT implements the inverse Burrows-Wheeler transform using the
// "single array" method: tt's low 8 bits hold the shuffled output byte and
// the upper 24 bits accumulate the index of the next output byte.
func inverseBWT(tt []uint32, origPtr uint, c []uint) uint32 {
	sum := uint(0)
	for i := 0; i < 256; i++ {
		sum += c[i]
		c[i] = sum - c[i]
	}
	for i := range tt {
		b := tt[i] & 0xff
		tt[c[b]] |= uint32(i) << 8
		c[b]++
	}
	return tt[origPtr] >> 8
}

// bwtForward computes the Burrows-Wheeler transform of block by sorting all
// cyclic rotations and taking the last column (§4.6 encode pipeline:
// "any correct suffix-array or Bentley-Sedgewick rotation sort"). Returns
// the transformed bytes and the row index of the original block among the
// sorted rotations.
func bwtForward(block []byte) (transformed []byte, origPtr int) {
	n := len(block)
	if n == 0 {
		return nil, 0
	}
	doubled := make([]byte, 2*n)
	copy(doubled, block)
	copy(doubled[n:], block)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sortRotations(idx, doubled, n)

	transformed = make([]byte, n)
	for i, rot := range idx {
		transformed[i] = doubled[rot+n-1]
		if rot == 0 {
			origPtr = i
		}
	}
	return transformed, origPtr
}

func sortRotations(idx []int, doubled []byte, n int) {
	// Comparison sort over rotation start offsets: O(n log n) compares,
	// each up to O(n) since a comparison walks the full rotation. Highly
	// periodic input (long non-degenerate repeats RLE1 can't already
	// collapse, i.e. period > 4) pushes individual compares toward their
	// O(n) worst case; a suffix-array construction (DC3, SA-IS) would give
	// an O(n log n) bound overall, but block sizes are capped at 900,000
	// bytes by the format itself, which keeps this within what a
	// reference-quality (not production-throughput) encoder needs.
	less := func(a, b int) bool {
		return bytes.Compare(doubled[a:a+n], doubled[b:b+n]) < 0
	}
	quicksortRotations(idx, less)
}

func quicksortRotations(idx []int, less func(a, b int) bool) {
	if len(idx) < 2 {
		return
	}
	pivot := idx[len(idx)/2]
	var left, mid, right []int
	for _, v := range idx {
		switch {
		case less(v, pivot):
			left = append(left, v)
		case less(pivot, v):
			right = append(right, v)
		default:
			mid = append(mid, v)
		}
	}
	quicksortRotations(left, less)
	quicksortRotations(right, less)
	copy(idx, left)
	copy(idx[len(left):], mid)
	copy(idx[len(left)+len(mid):], right)
}
