package deflate

import "github.com/nyquistlabs/archivekit/huffman"

// codeLengthOrder is the fixed permutation RFC 1951 §3.2.7 uses to pack the
// 3-bit code-length-code lengths (§4.5).
var codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// lengthBase/lengthExtraBits map litlen codes 257-285 to a base length and
// the number of extra bits that follow (RFC 1951 §3.2.5).
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13,
	15, 17, 19, 23, 27, 31, 35, 43, 51, 59,
	67, 83, 99, 115, 131, 163, 195, 227, 258,
}
var lengthExtraBits = [29]uint{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
	1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// distBase/distExtraBits map distance codes 0-29 to a base distance and
// extra bit count.
var distBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25,
	33, 49, 65, 97, 129, 193, 257, 385, 513, 769,
	1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}
var distExtraBits = [30]uint{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

const (
	endOfBlock  = 256
	litlenCount = 288
	distCount   = 30
)

var fixedLitLenTable *huffman.Table
var fixedDistTable *huffman.Table
var fixedLitLenEncode *huffman.EncodeTable
var fixedDistEncode *huffman.EncodeTable

func init() {
	litLens := make([]uint8, litlenCount)
	for i := 0; i < 144; i++ {
		litLens[i] = 8
	}
	for i := 144; i < 256; i++ {
		litLens[i] = 9
	}
	for i := 256; i < 280; i++ {
		litLens[i] = 7
	}
	for i := 280; i < 288; i++ {
		litLens[i] = 8
	}
	distLens := make([]uint8, distCount)
	for i := range distLens {
		distLens[i] = 5
	}

	var err error
	fixedLitLenTable, err = huffman.New(litLens, 9)
	if err != nil {
		panic("deflate: fixed literal/length table is malformed: " + err.Error())
	}
	fixedDistTable, err = huffman.New(distLens, 5)
	if err != nil {
		panic("deflate: fixed distance table is malformed: " + err.Error())
	}
	fixedLitLenEncode = huffman.NewEncodeTable(litLens)
	fixedDistEncode = huffman.NewEncodeTable(distLens)
}
