package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aimdisk/aimdisk"
	"github.com/aimdisk/aimdisk/cmd/aimdisk/internal"
	"github.com/aimdisk/aimdisk/codec"
	"github.com/aimdisk/aimdisk/internal/config"
)

// handleCreate implements the create subcommand
func handleCreate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)

	var output, model, format string
	var dim int
	var exclude internal.StringList

	fs.StringVar(&output, "o", "", "Output disk path (required)")
	fs.StringVar(&model, "model", cfg.Model.Signature, "Model signature the disk is bound to")
	fs.IntVar(&dim, "dim", cfg.Model.Dimension, "Vector dimension (default: parsed from the signature)")
	fs.StringVar(&format, "format", cfg.Disk.Format, "Disk layout: sqlite/aim or bolt/idz (default: by extension)")
	fs.Var(&exclude, "exclude", "Glob pattern to skip (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    aimdisk create -o <disk> [options] <file|glob>...

DESCRIPTION:
    Create a disk from text files. Every non-empty line becomes one chunk
    with a fabricated demo embedding; real embeddings come from whatever
    service produces vectors under the disk's model signature.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # One disk from a folder of notes
    aimdisk create -o memory.aim "notes/**/*.md"

    # Key/value layout with an explicit model
    aimdisk create -o memory.idz -model demo-8_fp32 "docs/*.txt"

    # Skip logs and build artifacts
    aimdisk create -o memory.aim -exclude "**/*.log" -exclude "dist/**" "src/**/*.txt"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if output == "" {
		fmt.Fprintf(os.Stderr, "Error: -o is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: at least one input file is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	if dim == 0 {
		parsed, err := internal.ParseDimension(model)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		dim = parsed
	}

	var opts []aimdisk.Option
	if format != "" {
		f, err := internal.ParseFormat(format)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		opts = append(opts, aimdisk.WithFormat(f))
	}

	files, err := internal.ExpandInputs(fs.Args(), append(cfg.Ingest.Exclude, exclude...))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	disk, err := aimdisk.Create(output, model, opts...)
	if err != nil {
		log.Fatalf("Failed to create disk: %v", err)
	}
	defer disk.Close()

	type pending struct {
		content  string
		metadata map[string]any
	}

	var chunks []pending
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}

		index := 0
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSuffix(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}

			chunks = append(chunks, pending{
				content: line,
				metadata: map[string]any{
					"source_file": path,
					"chunk_index": index,
					"char_count":  len(line),
				},
			})
			index++
		}
	}

	gen := internal.NewGenerator()
	progress := internal.NewProgress(internal.DefaultProgressEnabled())
	progress.Start(len(chunks))

	indexDisabled := false
	for _, chunk := range chunks {
		_, err := disk.AddChunk(chunk.content, codec.Float32(gen.Vector(dim)), chunk.metadata)
		if err != nil {
			if errors.Is(err, aimdisk.ErrUnsupportedIndex) {
				// Chunks still land on the disk; only the index is missing.
				indexDisabled = true
				progress.Increment()
				continue
			}
			log.Fatalf("Failed to add chunk: %v", err)
		}
		progress.Increment()
	}
	progress.Finish()

	if indexDisabled {
		fmt.Fprintf(os.Stderr, "Warning: model signature %q has no supported index; chunks were stored but semantic search stays disabled\n", model)
	}

	fmt.Printf("Created %s (%s): %d chunk(s) from %d file(s)\n",
		output, disk.Format(), len(chunks), len(files))
}
