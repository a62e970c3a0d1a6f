package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aimdisk/aimdisk"
	"github.com/aimdisk/aimdisk/cmd/aimdisk/internal"
	"github.com/aimdisk/aimdisk/codec"
	"github.com/aimdisk/aimdisk/internal/config"
)

// handleSearch implements the search subcommand
func handleSearch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	var diskPath, model string
	var topK, dim int
	var jsonOutput, keyword, inMemory bool

	fs.StringVar(&diskPath, "disk", cfg.Disk.Path, "Disk file to search")
	fs.StringVar(&model, "model", cfg.Model.Signature, "Model signature the disk is bound to")
	fs.IntVar(&dim, "dim", cfg.Model.Dimension, "Vector dimension (default: parsed from the signature)")
	fs.IntVar(&topK, "k", cfg.Search.DefaultTopK, "Number of results to return")
	fs.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	fs.BoolVar(&keyword, "keyword", false, "Match content terms instead of vectors")
	fs.BoolVar(&inMemory, "mem", false, "Load the disk into memory; the file is never written")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    aimdisk search [options] "<query>"

DESCRIPTION:
    Search a disk. The default mode fabricates a demo query embedding and
    ranks chunks by vector distance; -keyword matches content terms via
    the keyword sidecar instead.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Semantic search with the demo query embedding
    aimdisk search -disk memory.aim "hello"

    # Keyword search
    aimdisk search -disk memory.aim -keyword "hello world"

    # Top 3 as JSON, without touching the file
    aimdisk search -disk memory.aim -mem -k 3 -json "hello"
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
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: search query is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	query := fs.Arg(0)

	var opts []aimdisk.Option
	if keyword || cfg.Search.KeywordIndex {
		opts = append(opts, aimdisk.WithKeywordIndex())
	}

	open := aimdisk.Open
	if inMemory {
		open = aimdisk.OpenInMemory
	}
	disk, err := open(diskPath, model, opts...)
	if err != nil {
		log.Fatalf("Failed to open disk: %v", err)
	}
	defer disk.Close()

	if keyword {
		results, err := disk.KeywordSearch(query, topK)
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		outputKeywordResults(results, query, jsonOutput)
		return
	}

	if dim == 0 {
		parsed, err := internal.ParseDimension(model)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		dim = parsed
	}

	gen := internal.NewGenerator()
	results, err := disk.Search(codec.Float32(gen.Vector(dim)), topK)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	outputSearchResults(results, query, jsonOutput)
}

// outputSearchResults renders semantic search hits
func outputSearchResults(results []aimdisk.SearchResult, query string, jsonOutput bool) {
	if jsonOutput {
		rows := make([]map[string]any, 0, len(results))
		for _, r := range results {
			rows = append(rows, map[string]any{
				"chunk_id": r.Chunk.ID,
				"content":  r.Chunk.Content,
				"distance": r.Distance,
				"metadata": r.Chunk.Metadata,
			})
		}
		printJSON(query, rows)
		return
	}

	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	fmt.Printf("Found %d result(s) for: %s\n\n", len(results), query)
	for i, r := range results {
		fmt.Printf("%d. %s\n", i+1, preview(r.Chunk.Content, 80))
		fmt.Printf("   Distance: %.4f\n", r.Distance)
		fmt.Printf("   Chunk:    %s\n", r.Chunk.ID)
		if len(r.Chunk.Metadata) > 0 {
			fmt.Printf("   Metadata: %s\n", compactJSON(r.Chunk.Metadata))
		}
		fmt.Println()
	}
}

// outputKeywordResults renders keyword search hits
func outputKeywordResults(results []aimdisk.KeywordResult, query string, jsonOutput bool) {
	if jsonOutput {
		rows := make([]map[string]any, 0, len(results))
		for _, r := range results {
			rows = append(rows, map[string]any{
				"chunk_id": r.Chunk.ID,
				"content":  r.Chunk.Content,
				"score":    r.Score,
				"metadata": r.Chunk.Metadata,
			})
		}
		printJSON(query, rows)
		return
	}

	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	fmt.Printf("Found %d result(s) for: %s\n\n", len(results), query)
	for i, r := range results {
		fmt.Printf("%d. %s\n", i+1, preview(r.Chunk.Content, 80))
		fmt.Printf("   Score:    %.3f\n", r.Score)
		fmt.Printf("   Chunk:    %s\n", r.Chunk.ID)
		if len(r.Chunk.Metadata) > 0 {
			fmt.Printf("   Metadata: %s\n", compactJSON(r.Chunk.Metadata))
		}
		fmt.Println()
	}
}

func printJSON(query string, rows []map[string]any) {
	output := map[string]any{
		"query":   query,
		"count":   len(rows),
		"results": rows,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal results: %v", err)
	}
	fmt.Println(string(data))
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
