package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aimdisk/aimdisk"
	"github.com/aimdisk/aimdisk/internal/config"
)

// handleMeta implements the meta subcommand
func handleMeta(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("meta", flag.ExitOnError)

	var diskPath, model, chunkID string

	fs.StringVar(&diskPath, "disk", cfg.Disk.Path, "Disk file to update")
	fs.StringVar(&model, "model", cfg.Model.Signature, "Model signature the disk is bound to")
	fs.StringVar(&chunkID, "id", "", "Chunk id to update (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    aimdisk meta -disk <disk> -id <chunk-id> '<json>'

DESCRIPTION:
    Replace the metadata of one chunk with the given JSON object. The
    previous metadata is discarded, not merged.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    aimdisk meta -disk memory.aim -id 3e1f... '{"stage":"reviewed","rev":2}'
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if diskPath == "" || chunkID == "" {
		fmt.Fprintf(os.Stderr, "Error: -disk and -id are required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: metadata JSON is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	var metadata map[string]any
	if err := json.Unmarshal([]byte(fs.Arg(0)), &metadata); err != nil {
		log.Fatalf("Error: metadata is not a valid JSON object: %v", err)
	}

	disk, err := aimdisk.Open(diskPath, model)
	if err != nil {
		log.Fatalf("Failed to open disk: %v", err)
	}
	defer disk.Close()

	if err := disk.UpdateChunkMetadata(chunkID, metadata); err != nil {
		if errors.Is(err, aimdisk.ErrNotFound) {
			log.Fatalf("Error: no chunk with id %s", chunkID)
		}
		log.Fatalf("Failed to update metadata: %v", err)
	}

	fmt.Printf("Updated metadata of chunk %s\n", chunkID)
}
