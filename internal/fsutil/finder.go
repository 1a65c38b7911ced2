// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths, sorted.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		return nil, errors.New("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ResolvePath returns the files with the given extension found at path. A
// directory is searched recursively; a single file is returned as-is if it
// has the extension.
func ResolvePath(path string, extension string) ([]string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}

	if info.IsDir() {
		return FindFilesByExtension(path, extension)
	}
	if !strings.HasSuffix(path, extension) {
		return nil, fmt.Errorf("specified file is not a %s file: %s", extension, path)
	}
	return []string{path}, nil
}
