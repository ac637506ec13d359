package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sensiblebit/cardkit"
	"gopkg.in/yaml.v3"
)

// Environment variables that override configuration file values.
const (
	EnvPassTypeIdentifier = "PASS_TYPE_IDENTIFIER"
	EnvTeamIdentifier     = "APPLE_TEAM_IDENTIFIER"
	EnvPassphrase         = "PASS_CERTIFICATE_PASSWORD"
	EnvBaseURL            = "PUBLIC_BASE_URL"
	EnvCertificatesDir    = "PASS_CERTIFICATES_DIR"
)

// DefaultCertificatesDir is where signing material is looked up when no
// directory is configured.
const DefaultCertificatesDir = "certificates"

// Config holds the runtime configuration. Every field is optional.
type Config struct {
	PassTypeIdentifier    string `yaml:"pass_type_identifier"`
	TeamIdentifier        string `yaml:"team_identifier"`
	CertificatePassphrase string `yaml:"certificate_passphrase"`
	BaseURL               string `yaml:"base_url"`
	CertificatesDir       string `yaml:"certificates_dir"`
	LogFormat             string `yaml:"log_format"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	return Config{
		BaseURL:         cardkit.DefaultBaseURL,
		CertificatesDir: DefaultCertificatesDir,
		LogFormat:       "text",
	}
}

// LoadConfig reads a YAML config file and applies environment overrides.
// A missing or empty file yields the defaults. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		case len(data) > 0:
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			// Comment-only files decode to io.EOF.
			if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if cfg.BaseURL == "" {
		cfg.BaseURL = cardkit.DefaultBaseURL
	}
	if cfg.CertificatesDir == "" {
		cfg.CertificatesDir = DefaultCertificatesDir
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for env, field := range map[string]*string{
		EnvPassTypeIdentifier: &c.PassTypeIdentifier,
		EnvTeamIdentifier:     &c.TeamIdentifier,
		EnvPassphrase:         &c.CertificatePassphrase,
		EnvBaseURL:            &c.BaseURL,
		EnvCertificatesDir:    &c.CertificatesDir,
	} {
		if v, ok := lookup(env); ok && v != "" {
			*field = v
		}
	}
}

// PassBuilder returns a builder stamped with the configured identity.
func (c *Config) PassBuilder() *cardkit.PassBuilder {
	return &cardkit.PassBuilder{
		Identity: cardkit.PassIdentity{
			PassTypeIdentifier: c.PassTypeIdentifier,
			TeamIdentifier:     c.TeamIdentifier,
		},
		BaseURL: c.BaseURL,
	}
}

// VCardOptions returns encoder options for the configured deployment.
func (c *Config) VCardOptions() cardkit.VCardOptions {
	return cardkit.VCardOptions{BaseURL: c.BaseURL}
}
