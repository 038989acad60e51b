package archive

import (
	"fmt"

	"flowvc/internal/config"
	"flowvc/internal/vc"
)

// NewArchiveFromConfig creates an Archive implementation based on the archive config type.
func NewArchiveFromConfig(cfg config.ArchiveConfig) (vc.Archive, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryArchive(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_root to be set")
		}
		return NewFileSystemArchive(cfg.FSRoot)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 archive requires s3_bucket to be set")
		}
		return NewS3Archive(cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
