package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Excluded reports whether path matches any of the exclude patterns,
// either against the slash-separated path or against its basename.
func Excluded(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(path)); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}

// ExpandInputs resolves the file arguments of create: glob patterns are
// expanded, exclude patterns are applied, duplicates are dropped. The
// result keeps the argument order, with each glob's matches sorted, so the
// chunk order of the produced disk is reproducible.
func ExpandInputs(args, exclude []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, arg := range args {
		matches, err := expandArg(arg)
		if err != nil {
			return nil, err
		}

		for _, path := range matches {
			if seen[path] || Excluded(path, exclude) {
				continue
			}
			seen[path] = true
			files = append(files, path)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no input files after applying exclude patterns")
	}

	return files, nil
}

func expandArg(arg string) ([]string, error) {
	if !strings.ContainsAny(arg, "*?[{") {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read input %s: %w", arg, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("input %s is a directory; pass files or a glob like %s",
				arg, filepath.Join(arg, "**", "*.md"))
		}
		return []string{arg}, nil
	}

	matches, err := doublestar.FilepathGlob(arg)
	if err != nil {
		return nil, fmt.Errorf("bad glob pattern %s: %w", arg, err)
	}

	var files []string
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, path)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files match pattern %s", arg)
	}

	sort.Strings(files)
	return files, nil
}
