package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestResolveInputs_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.csv")
	touch(t, path)

	files, err := ResolveInputs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestResolveInputs_Directory_RecursiveCSVOnly(t *testing.T) {
	// GIVEN a partitioned dataset directory with a stray non-CSV file
	dir := t.TempDir()
	b := filepath.Join(dir, "day=2", "part-0.csv")
	a := filepath.Join(dir, "day=1", "part-0.csv")
	touch(t, b)
	touch(t, a)
	touch(t, filepath.Join(dir, "_SUCCESS"))

	// WHEN resolved
	files, err := ResolveInputs(dir)

	// THEN only CSV files are returned, sorted
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)
}

func TestResolveInputs_EmptyDirectory_NoFiles(t *testing.T) {
	files, err := ResolveInputs(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestResolveInputs_Glob(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "x", "part-1.csv")
	touch(t, keep)
	touch(t, filepath.Join(dir, "x", "other.csv"))

	files, err := ResolveInputs(filepath.Join(dir, "**", "part-*.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestResolveInputs_NoMatch_ReturnsError(t *testing.T) {
	_, err := ResolveInputs(filepath.Join(t.TempDir(), "missing", "*.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files match")
}

func TestResolveInputs_EmptyPath_ReturnsError(t *testing.T) {
	_, err := ResolveInputs("")
	assert.Error(t, err)
}
