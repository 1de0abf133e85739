package ygoprodeck

import (
	"os"
	"path/filepath"
)

// ArchiveToDir returns an ArchiveFunc writing each body to a file named
// after the archive inside dir, replacing any previous copy.
func ArchiveToDir(dir string) ArchiveFunc {
	return func(name string, data []byte) error {
		return os.WriteFile(filepath.Join(dir, name), data, 0644)
	}
}
