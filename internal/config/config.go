// Package config holds the device-side configuration of the reminder client.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultServerURL      = "http://localhost:5000"
	DefaultLocalStorePath = "./data/device.db"
	DefaultRequestTimeout = 10 * time.Second
)

// Environment overrides, applied after the file is read.
const (
	EnvServerURL  = "DEVNOTIFY_SERVER_URL"
	EnvLocalStore = "DEVNOTIFY_LOCAL_STORE"
)

// PushConfig is this device's web push endpoint, as handed out by the
// platform's push service.
type PushConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	P256dh   string `yaml:"p256dh" json:"p256dh"`
	Auth     string `yaml:"auth" json:"auth"`
}

type Config struct {
	// ServerURL is the base URL of the reminder service.
	ServerURL string `yaml:"server_url" json:"server_url"`

	// LocalStorePath is the sqlite file holding anonymous reminders and
	// event snapshots. ":memory:" keeps them for the process lifetime only.
	LocalStorePath string `yaml:"local_store" json:"local_store"`

	// RequestTimeout bounds every call to the reminder service.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// QuotaPages caps the local store size in sqlite pages. Zero means no cap.
	QuotaPages int `yaml:"quota_pages,omitempty" json:"quota_pages,omitempty"`

	// Notifications is the permission answer used when no interactive
	// prompter is available: "granted" or "denied".
	Notifications string `yaml:"notifications" json:"notifications"`

	Push PushConfig `yaml:"push" json:"push"`
}

func DefaultConfig() *Config {
	return &Config{
		ServerURL:      DefaultServerURL,
		LocalStorePath: DefaultLocalStorePath,
		RequestTimeout: DefaultRequestTimeout,
		Notifications:  "granted",
	}
}

// Normalize fills in zero values so partially written files still work.
func (c *Config) Normalize() {
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.LocalStorePath == "" {
		c.LocalStorePath = DefaultLocalStorePath
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.QuotaPages < 0 {
		c.QuotaPages = 0
	}
	switch c.Notifications {
	case "granted", "denied":
	default:
		c.Notifications = "granted"
	}
}

// ApplyEnv overrides file values with the DEVNOTIFY_* environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvLocalStore); v != "" {
		c.LocalStorePath = v
	}
	c.Normalize()
}

// Load reads the YAML config at path. On first run the defaults are written
// to path with 0600 perms and returned.
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
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename), 0600.
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

	tmp, err := os.CreateTemp(dir, ".devnotify-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
