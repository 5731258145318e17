package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ResolveInputs expands an input path into the list of CSV partitions to read.
//
// Accepted forms:
//   - "calls.csv"              → ["calls.csv"]
//   - "dataset/"               → every *.csv beneath the directory, recursively
//   - "dataset/**/part-*.csv"  → every match of the doublestar pattern
//
// The result is sorted so partition order is stable across runs.
func ResolveInputs(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty input path")
	}

	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return []string{path}, nil
		}
		return globFiles(filepath.Join(path, "**", "*.csv"))
	}

	if !doublestar.ValidatePathPattern(filepath.ToSlash(path)) {
		return nil, fmt.Errorf("invalid input pattern %q", path)
	}
	files, err := globFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files match %q", path)
	}
	return files, nil
}

func globFiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	sort.Strings(files)
	return files, nil
}
