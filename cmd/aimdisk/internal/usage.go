package internal

import (
	"fmt"
	"os"
	"strings"
)

const Version = "1.0.0"

// PrintUsage writes the top-level usage text and the list of subcommands
// to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `aimdisk - Identity Disk Toolkit

Version: %s

USAGE:
    aimdisk [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.aimdisk/config.yaml)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    create
        Create a disk from text files (one chunk per non-empty line)

    add
        Add a single chunk of text to a disk

    search
        Search a disk semantically or by keyword

    chunks
        List the chunks stored on a disk

    meta
        Replace the metadata of a chunk

    info
        Show the disk manifest and index state

    version
        Show version information

EXAMPLES:
    # Build a disk from markdown notes
    aimdisk create -o memory.aim docs/*.md

    # Build a key/value layout disk instead
    aimdisk create -o memory.idz -format bolt docs/*.md

    # Add one chunk with metadata
    aimdisk add -disk memory.aim -meta '{"topic":"greeting"}' "hello world"

    # Search without touching the file on disk
    aimdisk search -disk memory.aim -mem "hello"

    # Inspect a disk
    aimdisk info -disk memory.aim

For detailed help on each command, use:
    aimdisk <command> -help
`, Version)
}

// StringList is a flag.Value that collects multiple strings
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

// Set appends value, so a flag may be passed more than once.
func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
