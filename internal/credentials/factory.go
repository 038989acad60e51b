package credentials

import (
	"fmt"

	"flowvc/internal/config"
	"flowvc/internal/vc"
)

// NewSourceFromConfig creates a CredentialSource based on the credentials config type.
func NewSourceFromConfig(cfg config.CredentialsConfig) (vc.CredentialSource, error) {
	switch cfg.Type {
	case "age":
		if cfg.TokenPath == "" {
			return nil, fmt.Errorf("age credentials require token_path to be set")
		}
		return NewAgeSource(cfg.TokenPath), nil
	case "static":
		return NewStaticSource(vc.Credentials{
			Username:   cfg.Username,
			Token:      cfg.Token,
			SSHKeyPath: cfg.SSHKeyPath,
		}), nil
	default:
		return nil, fmt.Errorf("unknown credentials type: %s", cfg.Type)
	}
}
