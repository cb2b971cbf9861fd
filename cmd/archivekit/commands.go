package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloudeng.io/errors"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v2"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/nyquistlabs/archivekit/archive"
)

// fs is the filesystem every subcommand reads and writes through; tests
// swap in an afero.MemMapFs instead of touching the real disk.
var fs afero.Fs = afero.NewOsFs()

// formatFromName guesses a --format value from a file's extension, used
// when create/convert are not given an explicit --format.
func formatFromName(name string) (string, error) {
	base := strings.ToLower(name)
	switch {
	case strings.HasSuffix(base, ".gz") || strings.HasSuffix(base, ".gzip"):
		return "gzip", nil
	case strings.HasSuffix(base, ".bz2"):
		return "bzip2", nil
	case strings.HasSuffix(base, ".zst"):
		return "zstd", nil
	case strings.HasSuffix(base, ".lz4"):
		return "lz4", nil
	case strings.HasSuffix(base, ".lzh0"):
		return "lzh-lh0", nil
	case strings.HasSuffix(base, ".lzh5") || strings.HasSuffix(base, ".lzh"):
		return "lzh-lh5", nil
	case strings.HasSuffix(base, ".lzwt"):
		return "lzw-tiff", nil
	case strings.HasSuffix(base, ".lzwg"):
		return "lzw-gif", nil
	default:
		return "", fmt.Errorf("archivekit: cannot guess a format from %q, pass --format", name)
	}
}

type createFlags struct {
	Format string `subcmd:"format,,'compression format: gzip, bzip2, zstd, lz4, lzh-lh0, lzh-lh5, lzw-tiff, lzw-gif (guessed from --output when omitted)'"`
	Output string `subcmd:"output,,'output path, required'"`
}

func create(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*createFlags)
	if len(cl.Output) == 0 {
		return fmt.Errorf("archivekit create: --output is required")
	}
	format := cl.Format
	if len(format) == 0 {
		var err error
		if format, err = formatFromName(cl.Output); err != nil {
			return err
		}
	}

	errs := &errors.M{}
	var combined []byte
	for _, in := range args {
		data, err := afero.ReadFile(fs, in)
		if err != nil {
			errs.Append(err)
			continue
		}
		combined = append(combined, data...)
	}
	if err := errs.Err(); err != nil {
		return err
	}

	out, err := encodeFormat(format, combined)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, cl.Output, out, 0o644)
}

type listFlags struct {
	Format string `subcmd:"format,,'compression format, required unless the file carries a recognizable magic number'"`
}

func resolveListFormat(explicit string, data []byte) (string, archive.Format, error) {
	if len(explicit) > 0 {
		return explicit, archive.Unknown, nil
	}
	if len(data) >= 12 && string(data[:4]) == string(sizedWrapperMagic[:]) {
		return "", archive.Unknown, fmt.Errorf("archivekit: --format is required for archivekit-wrapped files")
	}
	detected := archive.DetectFormat(data)
	switch detected {
	case archive.Gzip:
		return "gzip", detected, nil
	case archive.Bzip2Format:
		return "bzip2", detected, nil
	case archive.ZstdFormat:
		return "zstd", detected, nil
	case archive.Lz4Format:
		return "lz4", detected, nil
	}
	return "", detected, fmt.Errorf("archivekit: detected format %s is not a single-stream format this tool can inspect; pass --format", detected)
}

func list(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*listFlags)
	errs := &errors.M{}
	for _, in := range args {
		data, err := afero.ReadFile(fs, in)
		if err != nil {
			errs.Append(err)
			continue
		}
		format, _, err := resolveListFormat(cl.Format, data)
		if err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
			continue
		}
		plain, err := decodeFormat(format, data)
		if err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
			continue
		}
		e := archive.NewFile(filepath.Base(strings.TrimSuffix(in, filepath.Ext(in))), uint64(len(plain)))
		e.CompressedSize = uint64(len(data))
		fmt.Printf("%s\t%d\t%d\t%.1f%%\t%s\n", e.Name, e.Size, e.CompressedSize, e.SpaceSavings(), format)
	}
	return errs.Err()
}

type extractFlags struct {
	Format  string `subcmd:"format,,'compression format, required unless the file carries a recognizable magic number'"`
	OutDir  string `subcmd:"output-dir,.,'directory to extract into'"`
	Include string `subcmd:"include,,'only extract members whose name matches this glob'"`
}

func extract(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*extractFlags)
	errs := &errors.M{}
	for _, in := range args {
		if len(cl.Include) > 0 {
			matched, err := doublestar.Match(cl.Include, filepath.Base(in))
			if err != nil {
				errs.Append(err)
				continue
			}
			if !matched {
				continue
			}
		}
		data, err := afero.ReadFile(fs, in)
		if err != nil {
			errs.Append(err)
			continue
		}
		format, _, err := resolveListFormat(cl.Format, data)
		if err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
			continue
		}
		plain, err := decodeFormat(format, data)
		if err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
			continue
		}
		name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		e := archive.NewFile(name, uint64(len(plain)))
		if err := e.ValidatePath(); err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
			continue
		}
		if err := fs.MkdirAll(cl.OutDir, 0o755); err != nil {
			errs.Append(err)
			continue
		}
		dst := filepath.Join(cl.OutDir, e.SanitizedName())
		if err := afero.WriteFile(fs, dst, plain, 0o644); err != nil {
			errs.Append(err)
		}
	}
	return errs.Err()
}

type testFlags struct {
	Format      string `subcmd:"format,,'compression format, required unless the file carries a recognizable magic number'"`
	ProgressBar bool   `subcmd:"progress,true,'display a progress bar when checking more than one file'"`
}

func test(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*testFlags)
	errs := &errors.M{}

	var bar *progressbar.ProgressBar
	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	if cl.ProgressBar && isTTY && len(args) > 1 {
		bar = progressbar.New(len(args))
	}

	for _, in := range args {
		data, err := afero.ReadFile(fs, in)
		if err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
			continue
		}
		format, _, err := resolveListFormat(cl.Format, data)
		if err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
			continue
		}
		if _, err := decodeFormat(format, data); err != nil {
			errs.Append(fmt.Errorf("%s: %w", in, err))
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		fmt.Println()
	}
	return errs.Err()
}

type convertFlags struct {
	From   string `subcmd:"from,,'source compression format, guessed from input name when omitted'"`
	To     string `subcmd:"to,,'destination compression format, required'"`
	Output string `subcmd:"output,,'output path, required'"`
}

func convert(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*convertFlags)
	if len(args) != 1 {
		return fmt.Errorf("archivekit convert: exactly one input file is required")
	}
	if len(cl.To) == 0 || len(cl.Output) == 0 {
		return fmt.Errorf("archivekit convert: --to and --output are required")
	}

	data, err := afero.ReadFile(fs, args[0])
	if err != nil {
		return err
	}
	from := cl.From
	if len(from) == 0 {
		if from, err = formatFromName(args[0]); err != nil {
			return err
		}
	}
	plain, err := decodeFormat(from, data)
	if err != nil {
		return err
	}
	out, err := encodeFormat(cl.To, plain)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, cl.Output, out, 0o644)
}

// supportedFormatsLine renders formatNames for use in subcommand doc strings.
func supportedFormatsLine() string {
	return strings.Join(formatNames, ", ")
}
