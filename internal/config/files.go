package config

import (
	"io/fs"
	"os"
	"path/filepath"
)

// PatternFileExt is the extension of textual IR pattern files
const PatternFileExt = ".ll"

// FindPatternFiles recursively finds all pattern files in dir, in lexical
// order.
func FindPatternFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == PatternFileExt {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// expandEntry returns the pattern files named by one configuration entry.
// Entries that are not directories, including missing ones, are returned as
// is so that the loader reports them against the pattern file.
func expandEntry(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return []string{path}, nil
	}
	return FindPatternFiles(path)
}
