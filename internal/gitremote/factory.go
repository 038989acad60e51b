package gitremote

import (
	"fmt"

	"flowvc/internal/config"
	"flowvc/internal/vc"
)

// NewTransportFromConfig creates a Transport implementation based on the git config type.
func NewTransportFromConfig(cfg config.GitConfig) (vc.Transport, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryTransport(), nil
	case "shell":
		if cfg.WorkDir == "" {
			return nil, fmt.Errorf("shell git transport requires work_dir to be set")
		}
		return NewShellTransport(cfg.WorkDir, cfg.AuthorName, cfg.AuthorEmail)
	default:
		return nil, fmt.Errorf("unknown git transport type: %s", cfg.Type)
	}
}
