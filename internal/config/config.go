package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UnitConfig describes one rental unit and its calendar feed.
type UnitConfig struct {
	// ID is the stable unit identifier used as the booking-store key.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI; defaults to ID.
	Name string `yaml:"name" json:"name"`
	// URL is the unit's iCal feed endpoint.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to compute "today" for
	// reconciliation runs (e.g. "America/Sao_Paulo").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule (e.g. "*/30 * * * *") for
	// periodic batch reconciliation.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DataDir holds the booking store and the feed cache.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// HorizonDays bounds recurring-event expansion around today.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// StripMarkers lists decorative marker strings removed from cleaner
	// names before storage, in addition to emoji-like symbol runes.
	StripMarkers []string `yaml:"strip_markers" json:"strip_markers"`

	// Units is the list of tracked units and their feeds.
	Units []UnitConfig `yaml:"units" json:"units"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "America/Sao_Paulo",
		RefreshCron:  "*/30 * * * *",
		DataDir:      "./var",
		HorizonDays:  120,
		StripMarkers: []string{"*", "_", "~"},
		Units:        []UnitConfig{},
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Sao_Paulo"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.DataDir == "" {
		c.DataDir = "./var"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 120
	}
	if c.StripMarkers == nil {
		c.StripMarkers = []string{"*", "_", "~"}
	}
	if c.Units == nil {
		c.Units = []UnitConfig{}
	}
	for i := range c.Units {
		if c.Units[i].Name == "" {
			c.Units[i].Name = c.Units[i].ID
		}
	}
}

// UnitName resolves a unit ID to its display name, falling back to the ID
// for units no longer present in the config.
func (c *Config) UnitName(id string) string {
	for _, u := range c.Units {
		if u.ID == id {
			return u.Name
		}
	}
	return id
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (0600,
// parent directory created) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
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

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory if needed.
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

	tmp, err := os.CreateTemp(dir, ".turnsched-config-*.tmp")
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

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
