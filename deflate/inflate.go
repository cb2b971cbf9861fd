// Package deflate implements RFC 1951 DEFLATE (inflate + deflate) and the
// RFC 1952 GZIP container around it (§4.5).
package deflate

import (
	"bufio"
	"bytes"
	"io"

	"github.com/nyquistlabs/archivekit/bitio"
	"github.com/nyquistlabs/archivekit/errs"
	"github.com/nyquistlabs/archivekit/huffman"
	"github.com/nyquistlabs/archivekit/ring"
)

const windowSize = 32768

// Reader decompresses a raw DEFLATE stream (no zlib or gzip framing).
type Reader struct {
	br      *bitio.Reader
	window  *ring.Buffer
	pending []byte
	final   bool
	err     error
}

// NewReader wraps r as a raw DEFLATE decompressor.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(interface {
		io.Reader
		io.ByteReader
	})
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: bitio.NewReader(br), window: ring.New(windowSize)}
}

// NewReaderDict wraps r as a raw DEFLATE decompressor preloaded with dict as
// a preset dictionary (§4.2).
func NewReaderDict(r io.Reader, dict []byte) *Reader {
	rr := NewReader(r)
	rr.window.PreloadDictionary(dict)
	return rr
}

// Read implements io.Reader, decoding blocks on demand to satisfy p.
func (z *Reader) Read(p []byte) (int, error) {
	for len(z.pending) == 0 {
		if z.err != nil {
			return 0, z.err
		}
		if z.final {
			return 0, io.EOF
		}
		if err := z.readBlock(); err != nil {
			z.err = err
			return 0, err
		}
	}
	n := copy(p, z.pending)
	z.pending = z.pending[n:]
	return n, nil
}

func (z *Reader) readBlock() error {
	bfinal := z.br.ReadBits(1)
	btype := z.br.ReadBits(2)
	if bfinal == 1 {
		z.final = true
	}
	switch btype {
	case 0:
		return z.readStored()
	case 1:
		return z.readHuffman(fixedLitLenTable, fixedDistTable)
	case 2:
		return z.readDynamicBlock()
	default:
		return &errs.CorruptedData{Message: "deflate: BTYPE 11 is reserved"}
	}
}

func (z *Reader) readStored() error {
	z.br.AlignToByte()
	length := z.br.ReadBits(16)
	nlength := z.br.ReadBits(16)
	if uint16(length) != ^uint16(nlength) {
		return &errs.CorruptedData{Message: "deflate: stored block LEN/NLEN mismatch"}
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = z.br.ReadByteAligned()
	}
	if err := z.br.Err(); err != nil {
		return &errs.Io{Err: err}
	}
	z.window.Write(buf)
	z.pending = append(z.pending, buf...)
	return nil
}

func (z *Reader) readDynamicBlock() error {
	hlit := int(z.br.ReadBits(5)) + 257
	hdist := int(z.br.ReadBits(5)) + 1
	hclen := int(z.br.ReadBits(4)) + 4

	var clLengths [19]uint8
	for i := 0; i < hclen; i++ {
		clLengths[codeLengthOrder[i]] = uint8(z.br.ReadBits(3))
	}
	clTable, err := huffman.New(clLengths[:], 7)
	if err != nil {
		return err
	}

	total := hlit + hdist
	lengths := make([]uint8, 0, total)
	for len(lengths) < total {
		sym, err := clTable.DecodeLSB(z.br)
		if err != nil {
			return err
		}
		switch {
		case sym <= 15:
			lengths = append(lengths, uint8(sym))
		case sym == 16:
			if len(lengths) == 0 {
				return &errs.CorruptedData{Message: "deflate: repeat code 16 with no previous length"}
			}
			prev := lengths[len(lengths)-1]
			n := int(z.br.ReadBits(2)) + 3
			for i := 0; i < n; i++ {
				lengths = append(lengths, prev)
			}
		case sym == 17:
			n := int(z.br.ReadBits(3)) + 3
			for i := 0; i < n; i++ {
				lengths = append(lengths, 0)
			}
		case sym == 18:
			n := int(z.br.ReadBits(7)) + 11
			for i := 0; i < n; i++ {
				lengths = append(lengths, 0)
			}
		default:
			return &errs.CorruptedData{Message: "deflate: invalid code-length symbol"}
		}
	}
	if len(lengths) != total {
		return &errs.CorruptedData{Message: "deflate: code length run overruns HLIT+HDIST"}
	}

	litLens := lengths[:hlit]
	distLens := lengths[hlit:]
	litTable, err := huffman.New(litLens, 9)
	if err != nil {
		return err
	}

	allZero := true
	for _, l := range distLens {
		if l != 0 {
			allZero = false
			break
		}
	}
	var distTable *huffman.Table
	if !allZero {
		distTable, err = huffman.New(distLens, 6)
		if err != nil {
			return err
		}
	}
	return z.readHuffman(litTable, distTable)
}

func (z *Reader) readHuffman(litlen, dist *huffman.Table) error {
	for {
		sym, err := litlen.DecodeLSB(z.br)
		if err != nil {
			return err
		}
		if sym == endOfBlock {
			return nil
		}
		if sym < 256 {
			z.window.WriteByte(byte(sym))
			z.pending = append(z.pending, byte(sym))
			continue
		}
		idx := int(sym) - 257
		if idx >= len(lengthBase) {
			return &errs.CorruptedData{Message: "deflate: invalid length code"}
		}
		length := lengthBase[idx]
		if lengthExtraBits[idx] > 0 {
			length += int(z.br.ReadBits(lengthExtraBits[idx]))
		}
		if dist == nil {
			return &errs.CorruptedData{Message: "deflate: match with no distance table present"}
		}
		distSym, err := dist.DecodeLSB(z.br)
		if err != nil {
			return err
		}
		if int(distSym) >= len(distBase) {
			return &errs.CorruptedData{Message: "deflate: invalid distance code"}
		}
		distance := distBase[distSym]
		if distExtraBits[distSym] > 0 {
			distance += int(z.br.ReadBits(distExtraBits[distSym]))
		}
		if distance > z.window.Len() {
			return &errs.InvalidDistance{Distance: distance, HistorySize: z.window.Len()}
		}
		out, err := z.window.CopyFromHistory(z.pending, distance, length)
		if err != nil {
			return err
		}
		z.pending = out
	}
}

// Decode decompresses a complete raw DEFLATE stream held in memory.
func Decode(data []byte) ([]byte, error) {
	return io.ReadAll(NewReader(bytes.NewReader(data)))
}
