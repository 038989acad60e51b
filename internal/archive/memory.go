// Package archive stores serialized commit payload bundles. Bundles are
// keyed by commit ID and immutable once written, so every backend is
// idempotent on re-upload.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"flowvc/internal/vc"
)

// MemoryArchive is an in-memory implementation of the Archive interface.
// Used by tests and throwaway runs.
type MemoryArchive struct {
	mu      sync.RWMutex
	bundles map[string][]byte
}

var _ vc.Archive = (*MemoryArchive)(nil)

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{bundles: make(map[string][]byte)}
}

func (a *MemoryArchive) PutBundle(commitID string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading bundle: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Bundles are immutable; re-uploading the same commit is a no-op.
	if _, ok := a.bundles[commitID]; ok {
		return nil
	}
	a.bundles[commitID] = data
	return nil
}

func (a *MemoryArchive) GetBundle(commitID string, w io.Writer) error {
	a.mu.RLock()
	data, ok := a.bundles[commitID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("bundle not found: %s", commitID)
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}

func (a *MemoryArchive) ValidateSetup() error { return nil }

// Len returns the number of stored bundles. For tests.
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.bundles)
}
