package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aimdisk/aimdisk/cmd/aimdisk/internal"
)

func main() {
	if len(os.Args) < 2 {
		internal.PrintUsage()
		os.Exit(1)
	}

	args := os.Args[1:]

	// Handle special flags that don't require a subcommand
	for _, arg := range args {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			internal.PrintUsage()
			os.Exit(0)
		}
		if arg == "-v" || arg == "-version" || arg == "--version" {
			fmt.Printf("aimdisk version %s\n", internal.Version)
			os.Exit(0)
		}
	}

	validSubcommands := map[string]bool{
		"create":  true,
		"add":     true,
		"search":  true,
		"chunks":  true,
		"meta":    true,
		"info":    true,
		"version": true,
	}

	// Find the subcommand: the first argument that names one. Anything in
	// front of it is a global flag.
	subcommandIndex := -1
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && validSubcommands[arg] {
			subcommandIndex = i
			break
		}
	}

	if subcommandIndex == -1 {
		fmt.Fprintf(os.Stderr, "Error: No subcommand specified\n\n")
		internal.PrintUsage()
		os.Exit(1)
	}

	configPath := ""
	globalFlags := args[:subcommandIndex]
	for i := 0; i < len(globalFlags); i++ {
		switch flag := globalFlags[i]; {
		case flag == "-config" || flag == "--config":
			if i+1 < len(globalFlags) {
				configPath = globalFlags[i+1]
				i++
			}
		case strings.HasPrefix(flag, "-"):
			fmt.Fprintf(os.Stderr, "Error: Unknown global flag: %s\n\n", flag)
			internal.PrintUsage()
			os.Exit(1)
		}
	}

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	subcommand := args[subcommandIndex]
	subcommandArgs := args[subcommandIndex+1:]

	switch subcommand {
	case "create":
		handleCreate(cfg, subcommandArgs)
	case "add":
		handleAdd(cfg, subcommandArgs)
	case "search":
		handleSearch(cfg, subcommandArgs)
	case "chunks":
		handleChunks(cfg, subcommandArgs)
	case "meta":
		handleMeta(cfg, subcommandArgs)
	case "info":
		handleInfo(cfg, subcommandArgs)
	case "version":
		fmt.Printf("aimdisk version %s\n", internal.Version)
	default:
		fmt.Printf("Unknown subcommand: %s\n\n", subcommand)
		internal.PrintUsage()
		os.Exit(1)
	}
}
