package database

import (
	"fmt"
	"os"
	"path/filepath"

	"flowvc/internal/config"
	"flowvc/internal/vc"
)

// NewStoreFromConfig creates a Store implementation based on the database config type.
// "memory" maps to an in-memory SQLite database, which keeps the full
// transactional semantics available in tests and throwaway runs.
func NewStoreFromConfig(cfg config.DatabaseConfig) (vc.Store, error) {
	switch cfg.Type {
	case "memory":
		store, err := NewSQLiteStore(":memory:", nil, nil)
		if err != nil {
			return nil, err
		}
		if err := store.MigrateUp(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return store, nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite database requires data_dir to be set")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "flowvc.db"), nil, nil)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
