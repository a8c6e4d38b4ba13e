// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Directory DirectoryConfig `yaml:"directory"`
	Player    PlayerConfig    `yaml:"player"`
	Audio     AudioConfig     `yaml:"audio"`
	Favorites FavoritesConfig `yaml:"favorites"`
}

// ServerConfig represents the API server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// DirectoryConfig represents station directory (radio-browser) configuration.
type DirectoryConfig struct {
	Mirrors    []string `yaml:"mirrors" validate:"omitempty,min=1,dive,url"`
	TimeoutSec int      `yaml:"timeout_sec" default:"10" validate:"gte=1,lte=60"`
	MaxRetries int      `yaml:"max_retries" default:"2" validate:"gte=0,lte=5"`
	PoolSize   int      `yaml:"pool_size" default:"30" validate:"gte=1,lte=200"`
	Countries  []string `yaml:"countries"`
}

// PlayerConfig represents playback controller configuration.
type PlayerConfig struct {
	LoadTimeoutSec  int     `yaml:"load_timeout_sec" default:"9" validate:"gte=1,lte=60"`
	MaxRetries      int     `yaml:"max_retries" default:"5" validate:"gte=1,lte=10"`
	DebounceMs      int     `yaml:"debounce_ms" default:"1000" validate:"gte=0,lte=10000"`
	RetryBackoffSec int     `yaml:"retry_backoff_sec" default:"2" validate:"gte=1,lte=30"`
	Volume          float64 `yaml:"volume" default:"0.8" validate:"gte=0,lte=1"`
}

// AudioConfig represents audio backend configuration.
// Settings are backend-specific and decoded by the backend itself.
type AudioConfig struct {
	Backend  string         `yaml:"backend" default:"beep"`
	Settings map[string]any `yaml:"settings"`
}

// FavoritesConfig represents favorites persistence configuration.
type FavoritesConfig struct {
	Path string `yaml:"path" default:"wavehop.db"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("WAVEHOP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("WAVEHOP_DB"); v != "" {
		c.Favorites.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
