package library

import (
	"errors"
	"os"
	"path/filepath"
)

// ResolveDirectory returns the most specific non-empty directory:
// item, then group, then library.
func ResolveDirectory(item, group, library string) (string, bool) {
	for _, dir := range []string{item, group, library} {
		if dir != "" {
			return dir, true
		}
	}
	return "", false
}

// localPath joins dir and file and checks that a regular file exists there.
func localPath(dir, file string) (string, error) {
	path := filepath.Join(dir, file)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &MissingFileError{Path: path}
		}
		return "", err
	}
	if info.IsDir() {
		return "", &MissingFileError{Path: path}
	}
	return path, nil
}
