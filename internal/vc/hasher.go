package vc

// Hasher computes content digests for working files and snapshots.
// The engine treats equal digests as equal content, so implementations
// must be collision-resistant enough for that to hold in practice; no
// particular algorithm is mandated.
type Hasher interface {
	// Sum returns the hex-encoded digest of data.
	Sum(data []byte) string

	// Name identifies the algorithm (e.g. "xxh3", "sha256").
	Name() string
}
