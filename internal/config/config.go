// Package config provides the YAML configuration for the mirror daemon and
// CLI, with defaults, normalization, and atomic save.
package config

import (
	"crypto/rand"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

// StorageConfig selects the snapshot persistence backend.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite", "postgres".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// DSN is the connection string for the postgres driver.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// BlobConfig selects the snapshot archive backend.
type BlobConfig struct {
	// Driver is one of "memory", "fs", "s3".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the base directory for the fs driver.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Bucket and Prefix configure the s3 driver.
	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// Config is the top-level daemon configuration.
type Config struct {
	// ServerURL is the planning backend REST base URL.
	ServerURL string `yaml:"server_url" json:"server_url"`
	// WebsocketURL is the notification bus endpoint.
	WebsocketURL string `yaml:"websocket_url" json:"websocket_url"`

	// User identifies this client for lock ownership checks. SessionID is
	// minted on first run and persisted so reconnects keep the same identity.
	User      string `yaml:"user" json:"user"`
	SessionID string `yaml:"session_id" json:"session_id"`

	// RefreshCron schedules periodic full re-syncs (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// MetricsListen is the Prometheus scrape listen address. Empty disables
	// the endpoint.
	MetricsListen string `yaml:"metrics_listen,omitempty" json:"metrics_listen,omitempty"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Blob    BlobConfig    `yaml:"blob" json:"blob"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:    "http://localhost:5000/api",
		WebsocketURL: "ws://localhost:5100",
		User:         "planningsync",
		SessionID:    NewSessionID(),
		RefreshCron:  "*/15 * * * *",
		Storage:      StorageConfig{Driver: "memory"},
		Blob:         BlobConfig{Driver: "memory"},
	}
}

// NewSessionID mints a lexically sortable session identifier.
func NewSessionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}

// Normalize fills missing values with defaults so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:5000/api"
	}
	if c.WebsocketURL == "" {
		c.WebsocketURL = "ws://localhost:5100"
	}
	if c.User == "" {
		c.User = "planningsync"
	}
	if c.SessionID == "" {
		c.SessionID = NewSessionID()
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		c.Storage.Driver = "memory"
	}
	switch c.Blob.Driver {
	case "memory", "fs", "s3":
	default:
		c.Blob.Driver = "memory"
	}
}

// Load reads configuration from the given YAML path. A missing file is a
// first run: a default config is written with 0600 perms and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the configuration atomically via temp file and rename, with
// 0600 final permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".planningsync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
