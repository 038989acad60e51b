package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"flowvc/internal/vc"
)

// FileSystemArchive stores bundles as files under a root directory:
//
//	<root>/
//	  bundles/
//	    <commitID>.json
type FileSystemArchive struct {
	root       string
	bundlesDir string
}

var _ vc.Archive = (*FileSystemArchive)(nil)

// NewFileSystemArchive creates a new filesystem archive rooted at the given path.
func NewFileSystemArchive(root string) (*FileSystemArchive, error) {
	bundlesDir := filepath.Join(root, "bundles")
	if err := os.MkdirAll(bundlesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bundles directory: %w", err)
	}
	return &FileSystemArchive{root: root, bundlesDir: bundlesDir}, nil
}

// PutBundle stores a bundle for the given commit.
// The operation is idempotent: storing the same commit multiple times is safe.
func (a *FileSystemArchive) PutBundle(commitID string, r io.Reader, size int64) error {
	destPath := filepath.Join(a.bundlesDir, commitID+".json")

	// If the bundle already exists, skip (idempotent)
	if _, err := os.Stat(destPath); err == nil {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read bundle: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return a.writeFile(destPath, r, size)
}

// GetBundle retrieves a bundle by commit ID and writes it to w.
func (a *FileSystemArchive) GetBundle(commitID string, w io.Writer) error {
	srcPath := filepath.Join(a.bundlesDir, commitID+".json")
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("bundle not found: %s", commitID)
		}
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the archive directories are accessible.
func (a *FileSystemArchive) ValidateSetup() error {
	for _, dir := range []string{a.root, a.bundlesDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("archive directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("archive path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (a *FileSystemArchive) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
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

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
