// Package config loads the client configuration from a YAML file with
// AUTHCLIENT_* environment overrides. An example config.yaml is provided in
// the repository.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

type Config struct {
	// ClientID identifies this consumer to the identity provider and
	// namespaces the persisted credentials.
	ClientID string `yaml:"clientId" env:"AUTHCLIENT_CLIENT_ID"`
	// Domain scopes the session server side.
	Domain string `yaml:"domain" env:"AUTHCLIENT_DOMAIN"`
	// Endpoint is the base URL of the identity provider.
	Endpoint string `yaml:"endpoint" env:"AUTHCLIENT_ENDPOINT"`

	Issuer string `yaml:"issuer" env:"AUTHCLIENT_ISSUER"`
	// PublicKey is the PEM-encoded verification key, inline. PublicKeyPath
	// points at a PEM file instead; inline wins when both are set.
	PublicKey     string `yaml:"publicKey" env:"AUTHCLIENT_PUBLIC_KEY"`
	PublicKeyPath string `yaml:"publicKeyPath" env:"AUTHCLIENT_PUBLIC_KEY_PATH"`

	// SessionExpiration is forwarded verbatim to the server on login,
	// e.g. "30 days".
	SessionExpiration string `yaml:"sessionExpiration" env:"AUTHCLIENT_SESSION_EXPIRATION"`

	// StorePath is the credential database location. Empty means
	// <user config dir>/auth-client/credentials.db.
	StorePath string `yaml:"storePath" env:"AUTHCLIENT_STORE_PATH"`

	Debug bool `yaml:"debug" env:"AUTHCLIENT_DEBUG"`
}

// Load reads path (when it exists), applies environment overrides and
// validates the result. A missing file is not an error so a fully
// env-configured client needs no config file at all.
func Load(path string) (Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultPath is <user config dir>/auth-client/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving the user config directory: %w", err)
	}

	return filepath.Join(dir, "auth-client", "config.yaml"), nil
}

func (c Config) validate() error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"clientId", c.ClientID},
		{"domain", c.Domain},
		{"endpoint", c.Endpoint},
		{"issuer", c.Issuer},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.PublicKey == "" && c.PublicKeyPath == "" {
		return fmt.Errorf("missing required configuration: one of publicKey, publicKeyPath")
	}

	return nil
}

// PublicKeyPEM resolves the verification key material.
func (c Config) PublicKeyPEM() ([]byte, error) {
	if c.PublicKey != "" {
		return []byte(c.PublicKey), nil
	}

	raw, err := os.ReadFile(c.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading the public key file: %w", err)
	}

	return raw, nil
}

// ResolveStorePath returns the configured store path, or the default under
// the user config directory, creating parent directories as needed.
func (c Config) ResolveStorePath() (string, error) {
	path := c.StorePath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolving the user config directory: %w", err)
		}
		path = filepath.Join(dir, "auth-client", "credentials.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating the store directory: %w", err)
	}

	return path, nil
}
