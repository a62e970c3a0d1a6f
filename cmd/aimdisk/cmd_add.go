package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/aimdisk/aimdisk"
	"github.com/aimdisk/aimdisk/cmd/aimdisk/internal"
	"github.com/aimdisk/aimdisk/codec"
	"github.com/aimdisk/aimdisk/internal/config"
)

// handleAdd implements the add subcommand
func handleAdd(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)

	var diskPath, model, meta string
	var dim int

	fs.StringVar(&diskPath, "disk", cfg.Disk.Path, "Disk file to add to")
	fs.StringVar(&model, "model", cfg.Model.Signature, "Model signature the disk is bound to")
	fs.IntVar(&dim, "dim", cfg.Model.Dimension, "Vector dimension (default: parsed from the signature)")
	fs.StringVar(&meta, "meta", "", "Chunk metadata as a JSON object")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    aimdisk add -disk <disk> [options] "<text>"

DESCRIPTION:
    Add one chunk of text with a fabricated demo embedding. When no text
    argument is given the chunk is read from stdin.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Add a chunk
    aimdisk add -disk memory.aim "hello world"

    # Add with metadata
    aimdisk add -disk memory.aim -meta '{"topic":"greeting"}' "hello world"

    # Add from stdin
    echo "piped in" | aimdisk add -disk memory.aim
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if diskPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -disk is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	var content string
	if fs.NArg() > 0 {
		content = strings.Join(fs.Args(), " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("Failed to read stdin: %v", err)
		}
		content = strings.TrimRight(string(data), "\n")
	}
	if strings.TrimSpace(content) == "" {
		log.Fatalf("Error: chunk text is empty")
	}

	var metadata map[string]any
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			log.Fatalf("Error: -meta is not a valid JSON object: %v", err)
		}
	}

	if dim == 0 {
		parsed, err := internal.ParseDimension(model)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		dim = parsed
	}

	disk, err := aimdisk.Open(diskPath, model)
	if err != nil {
		log.Fatalf("Failed to open disk: %v", err)
	}
	defer disk.Close()

	gen := internal.NewGenerator()
	chunkID, err := disk.AddChunk(content, codec.Float32(gen.Vector(dim)), metadata)
	if err != nil {
		if errors.Is(err, aimdisk.ErrUnsupportedIndex) {
			fmt.Fprintf(os.Stderr, "Warning: model signature %q has no supported index; the chunk was stored but semantic search stays disabled\n", model)
		} else {
			log.Fatalf("Failed to add chunk: %v", err)
		}
	}

	fmt.Println(chunkID)
}
