package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// ListCandidates returns the immediate children of parentDir as joined paths.
// Entries are not filtered by type: a regular file is handed to the updater,
// which classifies it as not a repository.
func ListCandidates(parentDir string, include, exclude []string) ([]string, error) {
	entries, err := os.ReadDir(parentDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", parentDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	names = FilterNames(names, include, exclude)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(parentDir, name))
	}
	return paths, nil
}
