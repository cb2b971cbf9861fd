package main

import (
	"encoding/binary"
	"fmt"

	"github.com/nyquistlabs/archivekit/bzip2"
	"github.com/nyquistlabs/archivekit/deflate"
	"github.com/nyquistlabs/archivekit/lz4"
	"github.com/nyquistlabs/archivekit/lzh"
	"github.com/nyquistlabs/archivekit/lzw"
	"github.com/nyquistlabs/archivekit/zstd"
)

// sizedWrapperMagic prefixes the tiny CLI-only framing this tool wraps
// around codecs that need an out-of-band uncompressed size (lzh, lzw):
// the container formats that normally carry that size (LZH archives, TIFF
// strip tables) are out of scope here, so archivekit stores it itself.
var sizedWrapperMagic = [4]byte{'A', 'K', 'S', '1'}

func wrapSized(uncompressedSize int, payload []byte) []byte {
	out := make([]byte, 4+8+len(payload))
	copy(out, sizedWrapperMagic[:])
	binary.LittleEndian.PutUint64(out[4:12], uint64(uncompressedSize))
	copy(out[12:], payload)
	return out
}

func unwrapSized(data []byte) (int, []byte, error) {
	if len(data) < 12 || string(data[:4]) != string(sizedWrapperMagic[:]) {
		return 0, nil, fmt.Errorf("archivekit: missing size wrapper header")
	}
	size := binary.LittleEndian.Uint64(data[4:12])
	return int(size), data[12:], nil
}

// formatNames lists every codec archivekit's create/extract/convert
// subcommands can target, in the order --format's help text shows them.
var formatNames = []string{"gzip", "bzip2", "zstd", "lz4", "lzh-lh0", "lzh-lh5", "lzw-tiff", "lzw-gif"}

func encodeFormat(name string, data []byte) ([]byte, error) {
	switch name {
	case "gzip":
		return deflate.EncodeGzip(data, deflate.GzipHeader{})
	case "bzip2":
		return bzip2.Encode(data)
	case "zstd":
		return zstd.Encode(data, &zstd.Encoder{Checksum: true}), nil
	case "lz4":
		return lz4.Encode(data, 9, lz4.FrameOptions{ContentChecksum: true, ContentSize: true}), nil
	case "lzh-lh0":
		body, err := lzh.Encode(data, lzh.Lh0)
		if err != nil {
			return nil, err
		}
		return wrapSized(len(data), body), nil
	case "lzh-lh5":
		body, err := lzh.Encode(data, lzh.Lh5)
		if err != nil {
			return nil, err
		}
		return wrapSized(len(data), body), nil
	case "lzw-tiff":
		body, err := lzw.Encode(data, lzw.TIFF)
		if err != nil {
			return nil, err
		}
		return wrapSized(len(data), body), nil
	case "lzw-gif":
		body, err := lzw.Encode(data, lzw.GIF)
		if err != nil {
			return nil, err
		}
		return wrapSized(len(data), body), nil
	default:
		return nil, fmt.Errorf("archivekit: unknown format %q (want one of %v)", name, formatNames)
	}
}

func decodeFormat(name string, data []byte) ([]byte, error) {
	switch name {
	case "gzip":
		out, _, err := deflate.DecodeGzip(data)
		return out, err
	case "bzip2":
		return bzip2.Decode(data)
	case "zstd":
		return zstd.Decode(data)
	case "lz4":
		return lz4.Decode(data)
	case "lzh-lh0":
		size, body, err := unwrapSized(data)
		if err != nil {
			return nil, err
		}
		return lzh.Decode(body, lzh.Lh0, uint64(size))
	case "lzh-lh5":
		size, body, err := unwrapSized(data)
		if err != nil {
			return nil, err
		}
		return lzh.Decode(body, lzh.Lh5, uint64(size))
	case "lzw-tiff":
		size, body, err := unwrapSized(data)
		if err != nil {
			return nil, err
		}
		return lzw.Decode(body, lzw.TIFF, size)
	case "lzw-gif":
		size, body, err := unwrapSized(data)
		if err != nil {
			return nil, err
		}
		return lzw.Decode(body, lzw.GIF, size)
	default:
		return nil, fmt.Errorf("archivekit: unknown format %q (want one of %v)", name, formatNames)
	}
}
