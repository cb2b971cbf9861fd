package deflate

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/nyquistlabs/archivekit/checksum"
	"github.com/nyquistlabs/archivekit/errs"
)

const (
	gzipMagic0 = 0x1f
	gzipMagic1 = 0x8b
	gzipCM     = 8 // deflate

	flagText    = 1 << 0
	flagHCRC    = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// GzipHeader carries the RFC 1952 header fields a caller may want to set or
// inspect; zero values are the common case (no name, no comment, OS
// unknown).
type GzipHeader struct {
	ModTime time.Time
	Name    string
	Comment string
	OS      byte
}

// DecodeGzip parses an RFC 1952 gzip stream: header, DEFLATE payload, then a
// trailing 4-byte CRC-32 and 4-byte ISIZE (mod 2^32), per §6.
func DecodeGzip(data []byte) ([]byte, GzipHeader, error) {
	var hdr GzipHeader
	r := bytes.NewReader(data)
	var fixed [10]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, hdr, &errs.UnexpectedEof{Expected: "gzip header"}
	}
	if fixed[0] != gzipMagic0 || fixed[1] != gzipMagic1 {
		return nil, hdr, &errs.InvalidMagic{Expected: []byte{gzipMagic0, gzipMagic1}, Found: fixed[0:2]}
	}
	if fixed[2] != gzipCM {
		return nil, hdr, &errs.UnsupportedMethod{Name: "gzip compression method"}
	}
	flags := fixed[3]
	hdr.ModTime = time.Unix(int64(binary.LittleEndian.Uint32(fixed[4:8])), 0)
	hdr.OS = fixed[9]

	if flags&flagExtra != 0 {
		var xlenBuf [2]byte
		if _, err := io.ReadFull(r, xlenBuf[:]); err != nil {
			return nil, hdr, &errs.UnexpectedEof{Expected: "gzip extra field length"}
		}
		xlen := binary.LittleEndian.Uint16(xlenBuf[:])
		if _, err := r.Seek(int64(xlen), io.SeekCurrent); err != nil {
			return nil, hdr, &errs.UnexpectedEof{Expected: "gzip extra field"}
		}
	}
	if flags&flagName != 0 {
		s, err := readCString(r)
		if err != nil {
			return nil, hdr, err
		}
		hdr.Name = s
	}
	if flags&flagComment != 0 {
		s, err := readCString(r)
		if err != nil {
			return nil, hdr, err
		}
		hdr.Comment = s
	}
	if flags&flagHCRC != 0 {
		var crcBuf [2]byte
		if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
			return nil, hdr, &errs.UnexpectedEof{Expected: "gzip header CRC"}
		}
	}

	payloadStart := len(data) - r.Len()
	if len(data)-payloadStart < 8 {
		return nil, hdr, &errs.UnexpectedEof{Expected: "gzip trailer"}
	}
	payload := data[payloadStart : len(data)-8]
	trailer := data[len(data)-8:]
	wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
	wantSize := binary.LittleEndian.Uint32(trailer[4:8])

	out, err := Decode(payload)
	if err != nil {
		return nil, hdr, err
	}
	gotCRC := checksum.ComputeCRC32(out)
	if gotCRC != wantCRC {
		return nil, hdr, &errs.CrcMismatch{Expected: uint64(wantCRC), Computed: uint64(gotCRC)}
	}
	if uint32(len(out)) != wantSize {
		return nil, hdr, &errs.CorruptedData{Message: "gzip: decompressed size does not match ISIZE"}
	}
	return out, hdr, nil
}

func readCString(r *bytes.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", &errs.UnexpectedEof{Expected: "gzip NUL-terminated field"}
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

// EncodeGzip compresses data as a complete RFC 1952 gzip stream.
func EncodeGzip(data []byte, hdr GzipHeader) ([]byte, error) {
	var buf bytes.Buffer
	flags := byte(0)
	if hdr.Name != "" {
		flags |= flagName
	}
	if hdr.Comment != "" {
		flags |= flagComment
	}
	mtime := uint32(0)
	if !hdr.ModTime.IsZero() {
		mtime = uint32(hdr.ModTime.Unix())
	}
	buf.WriteByte(gzipMagic0)
	buf.WriteByte(gzipMagic1)
	buf.WriteByte(gzipCM)
	buf.WriteByte(flags)
	var mtimeBuf [4]byte
	binary.LittleEndian.PutUint32(mtimeBuf[:], mtime)
	buf.Write(mtimeBuf[:])
	buf.WriteByte(0) // XFL
	buf.WriteByte(hdr.OS)
	if hdr.Name != "" {
		buf.WriteString(hdr.Name)
		buf.WriteByte(0)
	}
	if hdr.Comment != "" {
		buf.WriteString(hdr.Comment)
		buf.WriteByte(0)
	}

	payload, err := Encode(data)
	if err != nil {
		return nil, err
	}
	buf.Write(payload)

	var trailer [8]byte
	binary.LittleEndian.PutUint32(trailer[0:4], checksum.ComputeCRC32(data))
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(len(data)))
	buf.Write(trailer[:])
	return buf.Bytes(), nil
}
