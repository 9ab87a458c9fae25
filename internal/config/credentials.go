package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	errors "github.com/rhcarvalho/relay/pkg/apperrors"
)

// DefaultCredentialsPath is where an agent's identity is persisted when no
// path is configured explicitly.
const DefaultCredentialsPath = ".relay/credentials.yml"

// Credentials is the on-disk agent identity: an ed25519 keypair used to
// sign traffic to the upstream collector plus a stable agent id.
type Credentials struct {
	SecretKey string `yaml:"secret_key"`
	PublicKey string `yaml:"public_key"`
	ID        string `yaml:"id"`
}

// IsConfigured reports whether all three credential fields are set.
func (c Credentials) IsConfigured() bool {
	return c.SecretKey != "" && c.PublicKey != "" && c.ID != ""
}

// GenerateCredentials creates a fresh ed25519 keypair and agent id,
// encoding the keys as base64 for a human-editable YAML document.
func GenerateCredentials() (Credentials, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Credentials{}, errors.CredentialError("generate", "failed to generate keypair").Wrap(err)
	}
	return Credentials{
		SecretKey: base64.StdEncoding.EncodeToString(priv),
		PublicKey: base64.StdEncoding.EncodeToString(pub),
		ID:        uuid.NewString(),
	}, nil
}

// LoadCredentials reads credentials from path, regenerating and
// persisting a new keypair if the file is missing or incomplete, so a
// first run bootstraps its own identity.
func LoadCredentials(path string) (Credentials, error) {
	path, err := resolveCredentialsPath(path)
	if err != nil {
		return Credentials{}, err
	}

	creds, err := readCredentials(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Credentials{}, errors.CredentialError("load", fmt.Sprintf("could not read %s", path)).Wrap(err)
		}
		creds = Credentials{}
	}

	if creds.IsConfigured() {
		return creds, nil
	}

	creds, err = GenerateCredentials()
	if err != nil {
		return Credentials{}, err
	}
	if err := writeCredentials(path, creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// SaveCredentials writes creds to path, resolving "" to the default
// ~/.relay/credentials.yml location, and returns the path actually used.
func SaveCredentials(path string, creds Credentials) (string, error) {
	path, err := resolveCredentialsPath(path)
	if err != nil {
		return "", err
	}
	if err := writeCredentials(path, creds); err != nil {
		return "", err
	}
	return path, nil
}

func resolveCredentialsPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.CredentialError("resolve-path", "could not resolve home directory").Wrap(err)
	}
	return filepath.Join(home, DefaultCredentialsPath), nil
}

func readCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, err
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, errors.CredentialError("load", fmt.Sprintf("malformed credentials file %s", path)).Wrap(err)
	}
	return creds, nil
}

func writeCredentials(path string, creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.CredentialError("save", fmt.Sprintf("could not create directory for %s", path)).Wrap(err)
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return errors.CredentialError("save", "could not encode credentials").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.CredentialError("save", fmt.Sprintf("could not write %s", path)).Wrap(err)
	}
	return nil
}
