// Package config loads dvaldb configuration from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dvaldb/internal/sqlquote"
)

// Environment variables that override file values.
const (
	EnvDriver   = "DVALDB_DRIVER"
	EnvDSN      = "DVALDB_DSN"
	EnvLogLevel = "DVALDB_LOG_LEVEL"
)

// Config selects the store backend and logging.
type Config struct {
	// Driver is "sqlite3" or "postgres".
	Driver string `yaml:"driver"`

	// DSN is a file path for sqlite3 and a connection string for postgres.
	DSN string `yaml:"dsn"`

	LogLevel    string `yaml:"log_level"`
	Development bool   `yaml:"development"`

	// SchemaFile, when set, is a CUE or YAML file of table definitions
	// created on startup if missing.
	SchemaFile string `yaml:"schema_file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Driver:   string(sqlquote.SQLite),
		DSN:      "dvaldb.db",
		LogLevel: "info",
	}
}

// Load reads path on top of the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decode parses YAML with strict field validation, so a typo like "dns:"
// is an error rather than a silently ignored key.
func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDriver); v != "" {
		c.Driver = v
	}
	if v := getenv(EnvDSN); v != "" {
		c.DSN = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate rejects unknown drivers and an empty DSN.
func (c Config) Validate() error {
	if _, err := sqlquote.ParseDialect(c.Driver); err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	if c.DSN == "" {
		return errors.New("dsn is required")
	}
	return nil
}

// Dialect returns the validated driver as a dialect.
func (c Config) Dialect() sqlquote.Dialect {
	d, _ := sqlquote.ParseDialect(c.Driver)
	return d
}
