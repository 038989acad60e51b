// Package credentials resolves the git credentials used for remote
// pushes and pulls. Credentials live in a passphrase-encrypted file on
// disk; nothing secret is ever stored in the metadata database.
package credentials

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/BurntSushi/toml"

	"flowvc/internal/vc"
)

// storedCredentials is the on-disk shape inside the encrypted file.
type storedCredentials struct {
	Username   string `toml:"username"`
	Token      string `toml:"token"`
	SSHKeyPath string `toml:"ssh_key_path"`
}

// AgeSource implements vc.CredentialSource backed by an age
// scrypt-passphrase-encrypted file. The source starts locked; Unlock
// must be called with the passphrase before Resolve can succeed.
type AgeSource struct {
	tokenPath string
	creds     *vc.Credentials
}

var _ vc.CredentialSource = (*AgeSource)(nil)

// NewAgeSource creates a new AgeSource reading from the given file.
func NewAgeSource(tokenPath string) *AgeSource {
	return &AgeSource{tokenPath: tokenPath}
}

// Setup encrypts the given credentials with the passphrase and writes
// them to the token path, replacing any existing file.
func (s *AgeSource) Setup(passphrase string, creds vc.Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	var plain bytes.Buffer
	stored := storedCredentials{
		Username:   creds.Username,
		Token:      creds.Token,
		SSHKeyPath: creds.SSHKeyPath,
	}
	if err := toml.NewEncoder(&plain).Encode(stored); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	f, err := os.OpenFile(s.tokenPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating credentials file: %w", err)
	}
	defer f.Close()

	w, err := age.Encrypt(f, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := w.Write(plain.Bytes()); err != nil {
		return fmt.Errorf("writing encrypted credentials: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted credentials: %w", err)
	}

	return nil
}

// Unlock decrypts the credentials file with the passphrase and keeps the
// result in memory for subsequent Resolve calls.
func (s *AgeSource) Unlock(passphrase string) error {
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		return fmt.Errorf("reading credentials file: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return fmt.Errorf("decrypting credentials: %w", err)
	}

	plain, err := io.ReadAll(decReader)
	if err != nil {
		return fmt.Errorf("reading decrypted credentials: %w", err)
	}

	var stored storedCredentials
	if _, err := toml.NewDecoder(bytes.NewReader(plain)).Decode(&stored); err != nil {
		return fmt.Errorf("decoding credentials: %w", err)
	}

	s.creds = &vc.Credentials{
		Username:   stored.Username,
		Token:      stored.Token,
		SSHKeyPath: stored.SSHKeyPath,
	}
	return nil
}

// Resolve returns the unlocked credentials. Project-specific credential
// overrides are not supported; the projectID is accepted for interface
// symmetry.
func (s *AgeSource) Resolve(projectID string) (vc.Credentials, error) {
	if s.creds == nil {
		return vc.Credentials{}, fmt.Errorf("credentials are locked, unlock with passphrase first")
	}
	return *s.creds, nil
}

// IsConfigured returns true if the credentials file exists.
func (s *AgeSource) IsConfigured() bool {
	_, err := os.Stat(s.tokenPath)
	return err == nil
}
