package vc

import "io"

// Archive stores serialized commit bundles keyed by commit ID. The push
// queue writes a bundle before every transport attempt so a commit's
// exact payload survives even if the remote stays unreachable.
// All operations stream through io.Reader/io.Writer.
type Archive interface {
	// PutBundle stores a bundle for a commit. Idempotent: storing the
	// same commit ID multiple times is safe.
	// size is the number of bytes that will be read from r.
	PutBundle(commitID string, r io.Reader, size int64) error

	// GetBundle retrieves a bundle by commit ID and writes it to w.
	GetBundle(commitID string, w io.Writer) error

	// ValidateSetup verifies that the archive backend is accessible.
	ValidateSetup() error
}
