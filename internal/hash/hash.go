// Package hash provides the content hash implementations used to detect
// file changes and address snapshots.
package hash

import (
	"crypto/sha256"
	"fmt"

	"github.com/zeebo/xxh3"

	"flowvc/internal/config"
	"flowvc/internal/vc"
)

// XXH3Hasher hashes content with xxh3-128. Fast and collision-resistant
// enough for change detection; not cryptographic.
type XXH3Hasher struct{}

func (XXH3Hasher) Sum(data []byte) string {
	return fmt.Sprintf("%x", xxh3.Hash128(data).Bytes())
}

func (XXH3Hasher) Name() string { return "xxh3" }

// SHA256Hasher hashes content with SHA-256, for deployments that want a
// cryptographic digest in the snapshot ledger.
type SHA256Hasher struct{}

func (SHA256Hasher) Sum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func (SHA256Hasher) Name() string { return "sha256" }

// NewHasherFromConfig creates a Hasher based on the configured algorithm.
// An empty algorithm defaults to xxh3.
func NewHasherFromConfig(cfg config.HashConfig) (vc.Hasher, error) {
	switch cfg.Algorithm {
	case "", "xxh3":
		return XXH3Hasher{}, nil
	case "sha256":
		return SHA256Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm: %s", cfg.Algorithm)
	}
}

var (
	_ vc.Hasher = XXH3Hasher{}
	_ vc.Hasher = SHA256Hasher{}
)
