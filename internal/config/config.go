package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Venue  VenueConfig  `yaml:"venue"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	RegistrationPath string `yaml:"registration_path"`
	Workers          int    `yaml:"workers"`
	MetricsAddr      string `yaml:"metrics_addr"`
}

type VenueConfig struct {
	AccessDelay time.Duration `yaml:"access_delay"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const DefaultWorkers = 10

func Default() *Config {
	return &Config{
		Server: ServerConfig{Workers: DefaultWorkers},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.RegistrationPath == "" {
		return errors.New("registration path is required")
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Server.Workers)
	}
	if c.Venue.AccessDelay < 0 {
		return fmt.Errorf("access delay must not be negative, got %s", c.Venue.AccessDelay)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
