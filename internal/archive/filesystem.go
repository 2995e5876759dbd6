package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSystemArchive stores each object as a file under root, with the key's
// slashes mapped to subdirectories:
//
//	<root>/
//	  audit/
//	    20240115T103000Z-<run>.jsonl
//	  db/
//	    20240115T103000Z.db
type FileSystemArchive struct {
	name string
	root string
}

// NewFileSystemArchive creates the root directory if needed.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &FileSystemArchive{name: name, root: root}, nil
}

func (a *FileSystemArchive) pathFor(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(a.root, filepath.FromSlash(key)), nil
}

// Put writes the object atomically (temp file + rename).
func (a *FileSystemArchive) Put(_ context.Context, key string, r io.Reader, size int64) error {
	destPath, err := a.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	// Temp file in the destination directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (a *FileSystemArchive) Get(_ context.Context, key string, w io.Writer) error {
	srcPath, err := a.pathFor(key)
	if err != nil {
		return err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// List walks the root and returns slash-separated keys. Temp files from
// in-flight writes are skipped.
func (a *FileSystemArchive) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(a.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(a.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// ValidateSetup checks the root is a writable directory.
func (a *FileSystemArchive) ValidateSetup(context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}
	f, err := os.CreateTemp(a.root, ".tmp-probe-*")
	if err != nil {
		return fmt.Errorf("archive root not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}

var _ Store = (*FileSystemArchive)(nil)
