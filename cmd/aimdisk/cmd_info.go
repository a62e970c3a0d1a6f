package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aimdisk/aimdisk"
	"github.com/aimdisk/aimdisk/internal/config"
)

// handleInfo implements the info subcommand
func handleInfo(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)

	var diskPath, model string
	var jsonOutput bool

	fs.StringVar(&diskPath, "disk", cfg.Disk.Path, "Disk file to inspect")
	fs.StringVar(&model, "model", cfg.Model.Signature, "Model signature the disk is bound to")
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    aimdisk info -disk <disk>

DESCRIPTION:
    Show the disk manifest, the bound model signature and the state of the
    in-memory search index.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if diskPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -disk is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	// Inspection never needs to write; keep the file untouched.
	disk, err := aimdisk.OpenInMemory(diskPath, model)
	if err != nil {
		log.Fatalf("Failed to open disk: %v", err)
	}
	defer disk.Close()

	version, err := disk.SpecVersion()
	if err != nil {
		log.Fatalf("Failed to read manifest: %v", err)
	}
	created, err := disk.CreatedAt()
	if err != nil {
		log.Fatalf("Failed to read manifest: %v", err)
	}
	chunks, err := disk.GetChunks()
	if err != nil {
		log.Fatalf("Failed to count chunks: %v", err)
	}

	if jsonOutput {
		output := map[string]any{
			"path":            diskPath,
			"format":          disk.Format().String(),
			"spec_version":    version,
			"created_at":      created,
			"model_signature": disk.ModelSignature(),
			"index":           disk.IndexDescription(),
			"chunks":          len(chunks),
			"indexed":         disk.IndexLen(),
		}
		data, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal info: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("File:            %s\n", diskPath)
	fmt.Printf("Format:          %s\n", disk.Format())
	fmt.Printf("Spec version:    %s\n", version)
	fmt.Printf("Created at:      %s\n", created)
	fmt.Printf("Model signature: %s\n", disk.ModelSignature())
	fmt.Printf("Index:           %s\n", disk.IndexDescription())
	fmt.Printf("Chunks:          %d\n", len(chunks))
	fmt.Printf("Indexed:         %d\n", disk.IndexLen())
}
