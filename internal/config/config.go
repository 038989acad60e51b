package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for flowvc.
type Config struct {
	ServerID    string            `toml:"server_id"`
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Database    DatabaseConfig    `toml:"database"`
	Locks       LockConfig        `toml:"locks"`
	Push        PushConfig        `toml:"push"`
	Git         GitConfig         `toml:"git"`
	Archive     ArchiveConfig     `toml:"archive"`
	Credentials CredentialsConfig `toml:"credentials"`
	Hash        HashConfig        `toml:"hash"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// LockConfig controls the file-lock lease behavior.
type LockConfig struct {
	TTLSeconds int64 `toml:"ttl_seconds"` // lease duration; defaults to 300
}

// PushConfig controls the push outbox.
type PushConfig struct {
	MaxAttempts int64 `toml:"max_attempts"` // attempts before an entry fails terminally; defaults to 5
}

// GitConfig represents configuration for the git transport.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type GitConfig struct {
	Type        string `toml:"type"`                   // "shell" or "memory"
	WorkDir     string `toml:"work_dir,omitempty"`     // checkout scratch space, only for type=shell
	AuthorName  string `toml:"author_name,omitempty"`  // committer identity, only for type=shell
	AuthorEmail string `toml:"author_email,omitempty"` // committer identity, only for type=shell
}

// ArchiveConfig represents configuration for the commit payload archive.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
}

// CredentialsConfig represents configuration for git credential resolution.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CredentialsConfig struct {
	Type string `toml:"type"` // "age" or "static"

	// Age-specific fields (only used when Type == "age")
	TokenPath string `toml:"token_path,omitempty"` // passphrase-encrypted credentials file

	// Static fields (only used when Type == "static"; intended for tests)
	Username   string `toml:"username,omitempty"`
	Token      string `toml:"token,omitempty"`
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

// HashConfig selects the content hash algorithm.
type HashConfig struct {
	Algorithm string `toml:"algorithm"` // "xxh3" (default) or "sha256"
}

// NewConfig creates a new Config with the provided values and sensible defaults.
func NewConfig(serverID, baseDir string) *Config {
	return &Config{
		ServerID: serverID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Locks: LockConfig{TTLSeconds: 300},
		Push:  PushConfig{MaxAttempts: 5},
		Git: GitConfig{
			Type:    "shell",
			WorkDir: filepath.Join(baseDir, "checkouts"),
		},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "archive"),
		},
		Credentials: CredentialsConfig{
			Type:      "age",
			TokenPath: filepath.Join(baseDir, "keys", "git-credentials.age"),
		},
		Hash: HashConfig{Algorithm: "xxh3"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
