package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Principal is one entry in the static directory section.
type Principal struct {
	Name      string `yaml:"name"`
	Superuser bool   `yaml:"superuser"`
}

// DirectoryConfig selects and parameterizes the principal directory adapter.
type DirectoryConfig struct {
	Driver     string      `yaml:"driver"` // static | sqlite
	SQLitePath string      `yaml:"sqlite_path"`
	Principals []Principal `yaml:"principals"`
}

// PolicyConfig holds the two impersonation-window blocking toggles.
type PolicyConfig struct {
	BlockAlterSystem bool `yaml:"block_alter_system"`
	BlockCopyProgram bool `yaml:"block_copy_program"`
}

// Config holds all file-configurable parameters.
type Config struct {
	Listen       string          `yaml:"listen"`
	AuditLog     string          `yaml:"audit_log"`
	LogStatement string          `yaml:"log_statement"`
	Policy       PolicyConfig    `yaml:"policy"`
	Directory    DirectoryConfig `yaml:"directory"`
}

// DefaultConfig returns the built-in configuration. Both blocking toggles
// default to off; the directory starts with a superuser admin and one
// ordinary principal so a fresh install is immediately usable.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8093",
		AuditLog:     "set-user-audit.log",
		LogStatement: "none",
		Policy: PolicyConfig{
			BlockAlterSystem: false,
			BlockCopyProgram: false,
		},
		Directory: DirectoryConfig{
			Driver: "static",
			Principals: []Principal{
				{Name: "admin", Superuser: true},
				{Name: "alice"},
			},
		},
	}
}

// DefaultPath returns ~/.set-user/config.yaml, or "" when the home
// directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".set-user", "config.yaml")
}

// LoadConfig loads configuration from a YAML file.
// Empty path falls back to DefaultPath. Missing file returns defaults.
// Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk so reloaders can
// skip rewrites that did not change content. When no file exists
// (defaults used), the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if path == "" || os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return DefaultConfig(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, hash, nil
}

// StaticPrincipals converts the directory section to the map form the
// static directory adapter takes.
func (c *Config) StaticPrincipals() map[string]bool {
	out := make(map[string]bool, len(c.Directory.Principals))
	for _, p := range c.Directory.Principals {
		out[p.Name] = p.Superuser
	}
	return out
}

// DefaultConfigYAML returns a commented YAML string for setuser init.
func DefaultConfigYAML() string {
	return `# set-user configuration
# Generated by: setuser init
#
# Settings under policy: take effect on the next statement after a
# reload; no restart needed. Everything else is read at startup.

# Address for the HTTP control API (setuser serve).
listen: "127.0.0.1:8093"

# Hash-chained JSONL audit log. Verify with: setuser audit verify
audit_log: "set-user-audit.log"

# Statement logging outside impersonation windows: none | ddl | mod | all.
# Inside a window the level is forced to "all" and restored on reset.
log_statement: "none"

policy:
  # Refuse ALTER SYSTEM statements while impersonating.
  block_alter_system: false
  # Refuse COPY ... PROGRAM statements while impersonating.
  block_copy_program: false

directory:
  # static reads the principals list below; sqlite reads sqlite_path.
  driver: "static"
  sqlite_path: ""
  principals:
    - name: admin
      superuser: true
    - name: alice
      superuser: false
`
}
