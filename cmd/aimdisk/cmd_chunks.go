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

// handleChunks implements the chunks subcommand
func handleChunks(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)

	var diskPath, model string
	var jsonOutput, inMemory bool

	fs.StringVar(&diskPath, "disk", cfg.Disk.Path, "Disk file to list")
	fs.StringVar(&model, "model", cfg.Model.Signature, "Model signature the disk is bound to")
	fs.BoolVar(&jsonOutput, "json", false, "Output chunks as JSON")
	fs.BoolVar(&inMemory, "mem", false, "Load the disk into memory; the file is never written")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    aimdisk chunks [options]

DESCRIPTION:
    List every chunk stored on a disk with a content preview and its
    metadata. Embedding blobs are never printed.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Human-readable listing
    aimdisk chunks -disk memory.aim

    # Full content as JSON
    aimdisk chunks -disk memory.aim -json
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

	open := aimdisk.Open
	if inMemory {
		open = aimdisk.OpenInMemory
	}
	disk, err := open(diskPath, model)
	if err != nil {
		log.Fatalf("Failed to open disk: %v", err)
	}
	defer disk.Close()

	chunks, err := disk.GetChunks()
	if err != nil {
		log.Fatalf("Failed to list chunks: %v", err)
	}

	if jsonOutput {
		rows := make([]map[string]any, 0, len(chunks))
		for _, chunk := range chunks {
			rows = append(rows, map[string]any{
				"chunk_id": chunk.ID,
				"content":  chunk.Content,
				"metadata": chunk.Metadata,
			})
		}
		output := map[string]any{
			"count":  len(rows),
			"chunks": rows,
		}
		data, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal chunks: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	if len(chunks) == 0 {
		fmt.Println("No chunks stored")
		return
	}

	fmt.Printf("%d chunk(s)\n\n", len(chunks))
	for i, chunk := range chunks {
		fmt.Printf("%d. %s\n", i+1, preview(chunk.Content, 80))
		fmt.Printf("   Chunk:    %s\n", chunk.ID)
		if len(chunk.Metadata) > 0 {
			fmt.Printf("   Metadata: %s\n", compactJSON(chunk.Metadata))
		}
		fmt.Println()
	}
}

// preview truncates content to at most max runes for display.
func preview(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
