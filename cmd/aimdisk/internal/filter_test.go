package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content\n"), 0o644))
	}
}

func TestExcluded(t *testing.T) {
	patterns := []string{"**/*.log", "secret.txt"}

	assert.True(t, Excluded("var/app.log", patterns))
	assert.True(t, Excluded("deep/nested/trace.log", patterns))
	assert.True(t, Excluded("notes/secret.txt", patterns))
	assert.False(t, Excluded("notes/public.txt", patterns))
}

func TestExpandInputsPlainFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.txt", "b.txt")

	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	files, err := ExpandInputs([]string{b, a, b}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, files)
}

func TestExpandInputsGlob(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "notes/one.md", "notes/two.md", "notes/skip.log")

	files, err := ExpandInputs([]string{filepath.Join(dir, "notes", "*.md")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "notes", "one.md"),
		filepath.Join(dir, "notes", "two.md"),
	}, files)
}

func TestExpandInputsAppliesExcludes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "one.md", "two.md")

	files, err := ExpandInputs([]string{filepath.Join(dir, "*.md")}, []string{"two.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "one.md")}, files)

	_, err = ExpandInputs([]string{filepath.Join(dir, "*.md")}, []string{"*.md"})
	require.Error(t, err)
}

func TestExpandInputsMissingFile(t *testing.T) {
	_, err := ExpandInputs([]string{filepath.Join(t.TempDir(), "absent.txt")}, nil)
	require.Error(t, err)
}

func TestExpandInputsRejectsDirectory(t *testing.T) {
	_, err := ExpandInputs([]string{t.TempDir()}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestExpandInputsNoGlobMatches(t *testing.T) {
	_, err := ExpandInputs([]string{filepath.Join(t.TempDir(), "*.md")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files match")
}
