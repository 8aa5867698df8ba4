// Package config loads pdfmerger settings from YAML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// EnvVar overrides the config file location.
const EnvVar = "PDFMERGE_CONFIG"

// Config is the full settings tree.
type Config struct {
	Channel Channel `yaml:"channel"`
	Spool   Spool   `yaml:"spool"`
	Merge   Merge   `yaml:"merge"`
	Debug   Debug   `yaml:"debug"`
}

// Channel tunes the path channel. The client retry budget is
// Attempts * (DialTimeout + RetryDelay).
type Channel struct {
	Attempts       int           `yaml:"attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxLineBytes   int           `yaml:"max_line_bytes"`
	MaxConnections int           `yaml:"max_connections"`
	RelistenMin    time.Duration `yaml:"relisten_min"`
	RelistenMax    time.Duration `yaml:"relisten_max"`
}

// Spool controls the fallback inbox used when the channel is unreachable.
type Spool struct {
	Enabled bool          `yaml:"enabled"`
	MaxAge  time.Duration `yaml:"max_age"`
}

// Merge holds output defaults.
type Merge struct {
	DefaultName string `yaml:"default_name"`
}

// Debug controls the event log.
type Debug struct {
	Enabled bool   `yaml:"enabled"`
	LogFile string `yaml:"log_file"`
}

// Default returns the built-in settings.
func Default() *Config {
	cfg, err := parse(defaultYAML, &Config{})
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// DefaultPath returns the per-user config file location, honoring
// $PDFMERGE_CONFIG.
func DefaultPath() string {
	if p := os.Getenv(EnvVar); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pdfmerger", "config.yaml")
}

// Load reads path on top of the defaults. An empty path means DefaultPath.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := parse(data, Default())
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func parse(data []byte, base *Config) (*Config, error) {
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config (check syntax, indentation, and field names): %w", err)
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

// Validate rejects settings the channel and spool cannot work with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}

	if c.Channel.Attempts < 1 {
		errs = append(errs, fmt.Errorf("channel.attempts must be at least 1, got %d", c.Channel.Attempts))
	}
	positive("channel.retry_delay", c.Channel.RetryDelay)
	positive("channel.dial_timeout", c.Channel.DialTimeout)
	positive("channel.read_timeout", c.Channel.ReadTimeout)
	positive("channel.relisten_min", c.Channel.RelistenMin)
	positive("channel.relisten_max", c.Channel.RelistenMax)
	if c.Channel.RelistenMax < c.Channel.RelistenMin {
		errs = append(errs, fmt.Errorf("channel.relisten_max (%v) must not be below channel.relisten_min (%v)",
			c.Channel.RelistenMax, c.Channel.RelistenMin))
	}
	if c.Channel.MaxLineBytes < 256 {
		errs = append(errs, fmt.Errorf("channel.max_line_bytes must be at least 256, got %d", c.Channel.MaxLineBytes))
	}
	if c.Channel.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("channel.max_connections must be at least 1, got %d", c.Channel.MaxConnections))
	}
	positive("spool.max_age", c.Spool.MaxAge)
	if strings.ContainsAny(c.Merge.DefaultName, `/\`) {
		errs = append(errs, fmt.Errorf("merge.default_name must be a file name, got %q", c.Merge.DefaultName))
	}

	return errors.Join(errs...)
}
