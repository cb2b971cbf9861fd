package archive

import "bytes"

// Format identifies a container or single-stream archive format by its
// on-disk signature.
type Format int

const (
	Unknown Format = iota
	Zip
	Gzip
	Tar
	Lzh
	SevenZip
	Xz
	Bzip2Format
	ZstdFormat
	Lz4Format
	Cab
)

func (f Format) String() string {
	switch f {
	case Zip:
		return "ZIP"
	case Gzip:
		return "GZIP"
	case Tar:
		return "TAR"
	case Lzh:
		return "LZH"
	case SevenZip:
		return "7-Zip"
	case Xz:
		return "XZ"
	case Bzip2Format:
		return "Bzip2"
	case ZstdFormat:
		return "Zstandard"
	case Lz4Format:
		return "LZ4"
	case Cab:
		return "Cabinet"
	default:
		return "Unknown"
	}
}

// Extension returns the format's typical file extension, without a dot.
func (f Format) Extension() string {
	switch f {
	case Zip:
		return "zip"
	case Gzip:
		return "gz"
	case Tar:
		return "tar"
	case Lzh:
		return "lzh"
	case SevenZip:
		return "7z"
	case Xz:
		return "xz"
	case Bzip2Format:
		return "bz2"
	case ZstdFormat:
		return "zst"
	case Lz4Format:
		return "lz4"
	case Cab:
		return "cab"
	default:
		return ""
	}
}

// MimeType returns f's registered media type.
func (f Format) MimeType() string {
	switch f {
	case Zip:
		return "application/zip"
	case Gzip:
		return "application/gzip"
	case Tar:
		return "application/x-tar"
	case Lzh:
		return "application/x-lzh-compressed"
	case SevenZip:
		return "application/x-7z-compressed"
	case Xz:
		return "application/x-xz"
	case Bzip2Format:
		return "application/x-bzip2"
	case ZstdFormat:
		return "application/zstd"
	case Lz4Format:
		return "application/x-lz4"
	case Cab:
		return "application/vnd.ms-cab-compressed"
	default:
		return "application/octet-stream"
	}
}

// IsSingleStream reports whether f compresses one stream rather than
// holding a directory of members.
func (f Format) IsSingleStream() bool {
	switch f {
	case Gzip, Xz, Bzip2Format, ZstdFormat, Lz4Format:
		return true
	default:
		return false
	}
}

// IsContainer reports whether f holds multiple named members.
func (f Format) IsContainer() bool {
	switch f {
	case Zip, Tar, Lzh, SevenZip, Cab:
		return true
	default:
		return false
	}
}

var (
	zipMagic      = []byte{0x50, 0x4B}
	gzipMagic     = []byte{0x1F, 0x8B}
	sevenZMagic   = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	xzMagic       = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	bzip2Magic    = []byte{0x42, 0x5A, 0x68} // "BZh"
	zstdMagic     = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic      = []byte{0x04, 0x22, 0x4D, 0x18}
	cabMagic      = []byte("MSCF")
	tarUstarMagic = []byte("ustar")
)

// DetectFormat identifies the archive format of magic, a prefix of a
// candidate file's bytes (at least 262 bytes gives TAR's "ustar" field at
// offset 257 a chance to match; shorter prefixes still resolve every other
// format).
func DetectFormat(magic []byte) Format {
	if len(magic) >= 2 && bytes.HasPrefix(magic, zipMagic) {
		return Zip
	}
	if len(magic) >= 2 && bytes.HasPrefix(magic, gzipMagic) {
		return Gzip
	}
	if len(magic) >= 6 && bytes.HasPrefix(magic, sevenZMagic) {
		return SevenZip
	}
	if len(magic) >= 6 && bytes.HasPrefix(magic, xzMagic) {
		return Xz
	}
	if len(magic) >= 3 && bytes.HasPrefix(magic, bzip2Magic) {
		return Bzip2Format
	}
	if len(magic) >= 4 && bytes.HasPrefix(magic, zstdMagic) {
		return ZstdFormat
	}
	if len(magic) >= 4 && bytes.HasPrefix(magic, lz4Magic) {
		return Lz4Format
	}
	if len(magic) >= 4 && bytes.HasPrefix(magic, cabMagic) {
		return Cab
	}
	// LZH/LHA: "-lh?-" or "-lz?-" starting at offset 2 (the two bytes
	// before it are a 16-bit header-size field, not a fixed signature).
	if len(magic) >= 7 && magic[2] == '-' && magic[3] == 'l' &&
		(magic[4] == 'h' || magic[4] == 'z') && magic[6] == '-' {
		return Lzh
	}
	if len(magic) >= 262 && bytes.Equal(magic[257:262], tarUstarMagic) {
		return Tar
	}
	return Unknown
}
