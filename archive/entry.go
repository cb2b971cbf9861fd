// Package archive provides the format-agnostic container-layer types the
// codec layer was designed against: an Entry describing one member of an
// archive, the CompressionMethod tag each container format maps onto a
// codec package, and magic-byte detection of which container or
// single-stream format a blob is. Deep container parsing (a ZIP central
// directory walker, a 7z header reader, a CAB folder table) is out of
// scope (§1); what lives here is the thin surface cmd/archivekit
// dispatches on.
package archive

import (
	"path"
	"strings"
	"time"

	"github.com/nyquistlabs/archivekit/errs"
)

// CompressionMethod identifies which codec package (if any) an entry's
// bytes are encoded with.
type CompressionMethod int

const (
	Stored CompressionMethod = iota
	Deflate
	Lh0
	Lh4
	Lh5
	Lh6
	Lh7
	Lzma
	Lzma2
	Bzip2
	Zstd
	Lz4
	LzwTIFF
	LzwGIF
	UnknownMethod
)

// IsStored reports whether m requires no codec to read (stored / lh0).
func (m CompressionMethod) IsStored() bool { return m == Stored || m == Lh0 }

func (m CompressionMethod) String() string {
	switch m {
	case Stored:
		return "Stored"
	case Deflate:
		return "Deflate"
	case Lh0:
		return "lh0"
	case Lh4:
		return "lh4"
	case Lh5:
		return "lh5"
	case Lh6:
		return "lh6"
	case Lh7:
		return "lh7"
	case Lzma:
		return "LZMA"
	case Lzma2:
		return "LZMA2"
	case Bzip2:
		return "Bzip2"
	case Zstd:
		return "Zstd"
	case Lz4:
		return "LZ4"
	case LzwTIFF:
		return "LZW-TIFF"
	case LzwGIF:
		return "LZW-GIF"
	default:
		return "Unknown"
	}
}

// EntryType classifies what kind of filesystem object an Entry represents.
type EntryType int

const (
	File EntryType = iota
	Directory
	Symlink
	Hardlink
	UnknownEntryType
)

// FileAttributes carries the permission bits a container format recorded
// for an entry; at most one of UnixMode/DOSAttributes is meaningful for any
// given source format.
type FileAttributes struct {
	UnixMode      uint32
	HasUnixMode   bool
	DOSAttributes uint8
	HasDOS        bool
	UID, GID      uint32
	HasOwner      bool
}

// IsReadonly reports whether the entry's attributes mark it read-only,
// preferring DOS attributes when both are present (mirroring how Windows
// archivers set the Unix bits to a fixed default).
func (a FileAttributes) IsReadonly() bool {
	if a.HasDOS {
		return a.DOSAttributes&0x01 != 0
	}
	if a.HasUnixMode {
		return a.UnixMode&0o222 == 0
	}
	return false
}

// Entry describes one member of an archive, independent of which container
// format it came from.
type Entry struct {
	Name           string
	Type           EntryType
	Size           uint64
	CompressedSize uint64
	Method         CompressionMethod
	Modified       time.Time
	Attributes     FileAttributes
	CRC32          uint32
	HasCRC32       bool
	Comment        string
	LinkTarget     string
	Offset         uint64
}

// NewFile returns a stored file Entry of the given size.
func NewFile(name string, size uint64) Entry {
	return Entry{Name: name, Type: File, Size: size, CompressedSize: size}
}

// NewDirectory returns a directory Entry.
func NewDirectory(name string) Entry {
	return Entry{Name: name, Type: Directory}
}

// CompressionRatio returns CompressedSize/Size, or 1.0 for an empty entry.
func (e Entry) CompressionRatio() float64 {
	if e.Size == 0 {
		return 1.0
	}
	return float64(e.CompressedSize) / float64(e.Size)
}

// SpaceSavings returns the percentage of bytes compression removed.
func (e Entry) SpaceSavings() float64 {
	if e.Size == 0 {
		return 0
	}
	return (1 - e.CompressionRatio()) * 100
}

// ValidatePath rejects an entry name that would escape an extraction
// directory: absolute paths and ".." components (§7: path traversal
// is a first-class error, not something extraction silently tolerates).
func (e Entry) ValidatePath() error {
	name := e.Name
	if path.IsAbs(name) || strings.HasPrefix(name, "/") {
		return &errs.PathTraversal{Path: name}
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return &errs.PathTraversal{Path: name}
		}
		if strings.ContainsRune(part, 0) {
			return &errs.PathTraversal{Path: name}
		}
	}
	return nil
}

// SanitizedName returns e.Name with ".." and absolute-path components
// stripped, safe to join under an extraction root.
func (e Entry) SanitizedName() string {
	parts := strings.Split(e.Name, "/")
	var out []string
	for _, part := range parts {
		switch part {
		case "", ".", "..":
			continue
		default:
			out = append(out, strings.ReplaceAll(part, "\x00", "_"))
		}
	}
	return strings.Join(out, "/")
}
