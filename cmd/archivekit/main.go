// Command archivekit compresses, inspects, extracts and converts between
// the single-stream formats this module implements (gzip, bzip2, zstd,
// lz4, lzh and lzw): a thin CLI over the codec packages, not a full
// multi-member archive manager (see archive.Format's IsContainer for the
// formats this tool can detect but not open).
package main

import (
	"context"

	"cloudeng.io/cmdutil/subcmd"
)

var cmdSet *subcmd.CommandSet

func init() {
	createCmd := subcmd.NewCommand("create",
		subcmd.MustRegisterFlagStruct(&createFlags{}, nil, nil),
		create, subcmd.AtLeastNArguments(1))
	createCmd.Document(`compress one or more input files into a single output file. Supported formats: ` + supportedFormatsLine() + `.`)

	listCmd := subcmd.NewCommand("list",
		subcmd.MustRegisterFlagStruct(&listFlags{}, nil, nil),
		list, subcmd.AtLeastNArguments(1))
	listCmd.Document(`print the uncompressed size, compressed size and space savings of each compressed file.`)

	extractCmd := subcmd.NewCommand("extract",
		subcmd.MustRegisterFlagStruct(&extractFlags{}, nil, nil),
		extract, subcmd.AtLeastNArguments(1))
	extractCmd.Document(`decompress one or more files into --output-dir.`)

	testCmd := subcmd.NewCommand("test",
		subcmd.MustRegisterFlagStruct(&testFlags{}, nil, nil),
		test, subcmd.AtLeastNArguments(1))
	testCmd.Document(`verify that each file decompresses without error, without writing any output.`)

	convertCmd := subcmd.NewCommand("convert",
		subcmd.MustRegisterFlagStruct(&convertFlags{}, nil, nil),
		convert, subcmd.ExactlyNumArguments(1))
	convertCmd.Document(`decompress a file and recompress it with a different format.`)

	cmdSet = subcmd.NewCommandSet(createCmd, listCmd, extractCmd, testCmd, convertCmd)
	cmdSet.Document(`create, inspect, extract and convert single-stream compressed files.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}
