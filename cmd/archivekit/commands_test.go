package main

import (
	"context"
	"testing"

	"github.com/spf13/afero"
)

func withMemFs(t *testing.T) func() {
	t.Helper()
	prev := fs
	fs = afero.NewMemMapFs()
	return func() { fs = prev }
}

func TestCreateListExtractRoundTrip(t *testing.T) {
	defer withMemFs(t)()

	if err := afero.WriteFile(fs, "in.txt", []byte("hello archivekit, hello archivekit"), 0o644); err != nil {
		t.Fatal(err)
	}

	cl := &createFlags{Format: "gzip", Output: "out.gz"}
	if err := create(context.Background(), cl, []string{"in.txt"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	lf := &listFlags{Format: "gzip"}
	if err := list(context.Background(), lf, []string{"out.gz"}); err != nil {
		t.Fatalf("list: %v", err)
	}

	ef := &extractFlags{Format: "gzip", OutDir: "out"}
	if err := extract(context.Background(), ef, []string{"out.gz"}); err != nil {
		t.Fatalf("extract: %v", err)
	}

	got, err := afero.ReadFile(fs, "out/out.gz")
	if err == nil {
		t.Fatal("expected the extracted member to be named after the trimmed input, not out/out.gz")
	}
	got, err = afero.ReadFile(fs, "out/out")
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(got) != "hello archivekit, hello archivekit" {
		t.Errorf("extracted content = %q", got)
	}
}

func TestCreateGuessesFormatFromOutputExtension(t *testing.T) {
	defer withMemFs(t)()
	if err := afero.WriteFile(fs, "in.txt", []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	cl := &createFlags{Output: "out.bz2"}
	if err := create(context.Background(), cl, []string{"in.txt"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	tf := &testFlags{Format: "bzip2"}
	if err := test(context.Background(), tf, []string{"out.bz2"}); err != nil {
		t.Fatalf("test: %v", err)
	}
}

func TestListDetectsFormatFromMagic(t *testing.T) {
	defer withMemFs(t)()
	if err := afero.WriteFile(fs, "in.txt", []byte("detect me, detect me, detect me"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := create(context.Background(), &createFlags{Format: "gzip", Output: "a.gz"}, []string{"in.txt"}); err != nil {
		t.Fatal(err)
	}
	// No --format: list must recognize the gzip magic bytes on its own.
	if err := list(context.Background(), &listFlags{}, []string{"a.gz"}); err != nil {
		t.Fatalf("list without --format: %v", err)
	}
}

func TestConvertBetweenFormats(t *testing.T) {
	defer withMemFs(t)()
	if err := afero.WriteFile(fs, "in.txt", []byte("convert this payload, convert this payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := create(context.Background(), &createFlags{Format: "lzw-tiff", Output: "a.lzwt"}, []string{"in.txt"}); err != nil {
		t.Fatal(err)
	}
	cf := &convertFlags{From: "lzw-tiff", To: "lz4", Output: "b.lz4"}
	if err := convert(context.Background(), cf, []string{"a.lzwt"}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if err := test(context.Background(), &testFlags{Format: "lz4"}, []string{"b.lz4"}); err != nil {
		t.Fatalf("test converted output: %v", err)
	}
}

func TestTestReportsDecodeErrorsForEachFile(t *testing.T) {
	defer withMemFs(t)()
	if err := afero.WriteFile(fs, "bad.gz", []byte("not actually gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := test(context.Background(), &testFlags{Format: "gzip", ProgressBar: false}, []string{"bad.gz"}); err == nil {
		t.Fatal("expected test to report a decode error")
	}
}

func TestExtractHonorsIncludeGlob(t *testing.T) {
	defer withMemFs(t)()
	if err := afero.WriteFile(fs, "keep.txt", []byte("keep me, keep me, keep me"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := create(context.Background(), &createFlags{Format: "bzip2", Output: "keep.bz2"}, []string{"keep.txt"}); err != nil {
		t.Fatal(err)
	}
	if err := create(context.Background(), &createFlags{Format: "bzip2", Output: "skip.bz2"}, []string{"keep.txt"}); err != nil {
		t.Fatal(err)
	}

	ef := &extractFlags{Format: "bzip2", OutDir: "out", Include: "keep.*"}
	if err := extract(context.Background(), ef, []string{"keep.bz2", "skip.bz2"}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if exists, _ := afero.Exists(fs, "out/keep"); !exists {
		t.Error("expected out/keep to be extracted")
	}
	if exists, _ := afero.Exists(fs, "out/skip"); exists {
		t.Error("expected out/skip to be skipped by --include")
	}
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	defer withMemFs(t)()
	if err := afero.WriteFile(fs, "../evil.txt", []byte("evil, evil, evil, evil, evil"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := create(context.Background(), &createFlags{Format: "gzip", Output: "../evil.gz"}, []string{"../evil.txt"}); err != nil {
		t.Fatal(err)
	}
	ef := &extractFlags{Format: "gzip", OutDir: "out"}
	if err := extract(context.Background(), ef, []string{"../evil.gz"}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if exists, _ := afero.Exists(fs, "out/../evil"); exists {
		t.Error("expected the traversal attempt to be sanitized, not written outside out/")
	}
}
