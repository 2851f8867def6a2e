// Package config persists the CLI's profile configuration: which desk address
// each named profile points at, plus operation timeouts. The control engine
// never reads this directly; the CLI resolves a profile to an address and
// passes it down.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// DefaultProfile is the profile used when none is named.
const DefaultProfile = "default"

// NoAddressError reports a profile with no configured desk address.
type NoAddressError struct {
	Profile string
}

func (e *NoAddressError) Error() string {
	return fmt.Sprintf("no desk configured for profile %q - run 'blesk scan' then 'blesk set <address>'", e.Profile)
}

// Profile holds per-profile settings.
type Profile struct {
	Address string `yaml:"address"`
}

// Config holds application configuration
type Config struct {
	Profiles map[string]Profile `yaml:"profiles"`

	ScanDuration    time.Duration `yaml:"scan_duration" default:"5s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"10s"`
	ResponseTimeout time.Duration `yaml:"response_timeout" default:"2s"`
	MoveTimeout     time.Duration `yaml:"move_timeout" default:"40s"`
}

// New returns a configuration with default values and no profiles.
func New() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	c.Profiles = make(map[string]Profile)
	return c
}

// Path returns the default config file location, honoring XDG_CONFIG_HOME.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "blesk", "config.yaml")
}

// Load reads the config file at path. A missing file is not an error; it
// yields an empty configuration with defaults applied.
func Load(path string) (*Config, error) {
	c := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	return c, nil
}

// Save writes the config file at path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultAddress resolves the desk address of a profile. An empty profile
// name selects DefaultProfile.
func (c *Config) DefaultAddress(profile string) (string, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	p, ok := c.Profiles[profile]
	if !ok || p.Address == "" {
		return "", &NoAddressError{Profile: profile}
	}
	return p.Address, nil
}

// SetDefaultAddress stores the desk address for a profile.
func (c *Config) SetDefaultAddress(profile, address string) {
	if profile == "" {
		profile = DefaultProfile
	}
	p := c.Profiles[profile]
	p.Address = address
	c.Profiles[profile] = p
}
