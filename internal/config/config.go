package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Verbose   bool
	Log       LogConfig
	Lightning LightningConfig
	Database  DatabaseConfig
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // logrus level name
	Format string // "text" or "json"
}

// LightningConfig holds LNURL client settings.
type LightningConfig struct {
	Timeout        time.Duration // per request
	ValidityWindow time.Duration // how long a descriptor is shown as payable
	Scheme         string        // discovery scheme, "https" outside of tests
	UserAgent      string
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	Path string
}

// Load reads configuration from Viper and returns a Config struct.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Verbose: v.GetBool("verbose"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Lightning: LightningConfig{
			Timeout:        v.GetDuration("lightning.timeout"),
			ValidityWindow: v.GetDuration("lightning.validity_window"),
			Scheme:         strings.ToLower(v.GetString("lightning.scheme")),
			UserAgent:      v.GetString("lightning.user_agent"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
	}

	// Apply defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Lightning.Timeout == 0 {
		cfg.Lightning.Timeout = 10 * time.Second
	}
	if cfg.Lightning.ValidityWindow == 0 {
		cfg.Lightning.ValidityWindow = time.Hour
	}
	if cfg.Lightning.Scheme == "" {
		cfg.Lightning.Scheme = "https"
	}
	if cfg.Lightning.UserAgent == "" {
		cfg.Lightning.UserAgent = "zapdesk"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "zapdesk.db"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Lightning.Timeout < 0 {
		return fmt.Errorf("lightning.timeout must be positive, got %s", c.Lightning.Timeout)
	}
	if c.Lightning.ValidityWindow < 0 {
		return fmt.Errorf("lightning.validity_window must be positive, got %s", c.Lightning.ValidityWindow)
	}
	if c.Lightning.Scheme != "https" && c.Lightning.Scheme != "http" {
		return fmt.Errorf("lightning.scheme must be https or http, got %q", c.Lightning.Scheme)
	}
	return nil
}
