// Package fsutil provides the file system helpers shared by the plan loader
// and the launch supervisor.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension collects the files reachable from rootPath that end
// with the given extension, in sorted order so callers see a stable
// sequence. A rootPath that is itself a matching file is returned alone,
// which lets one entry point accept both a single file and a directory.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !strings.HasSuffix(rootPath, extension) {
			return nil, fmt.Errorf("%s is not a %s file", rootPath, extension)
		}
		return []string{rootPath}, nil
	}

	var files []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
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

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
