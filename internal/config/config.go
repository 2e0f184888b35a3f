// Package config defines service configuration and its loading from
// defaults, an optional YAML file and environment variables.
package config

import (
	"fmt"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Store selects the session store backend: memory or postgres.
	Store string `koanf:"store"`
	// DatabaseURL is the PostgreSQL DSN, required for the postgres store.
	DatabaseURL string `koanf:"database_url"`
	// MigrateOnStart applies pending schema migrations before serving.
	MigrateOnStart bool `koanf:"migrate_on_start"`

	// DirectoryFile points to a YAML file with groups, members and packs.
	DirectoryFile string `koanf:"directory_file"`

	// ShuffleSeed seeds the sample order shuffler; 0 seeds from the clock.
	ShuffleSeed uint64 `koanf:"shuffle_seed"`

	// MaxCommentLength caps the length of a single rating comment in runes.
	MaxCommentLength int `koanf:"max_comment_length"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		ShutdownTimeout:  10 * time.Second,
		Store:            StoreMemory,
		MigrateOnStart:   true,
		MaxCommentLength: 500,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && c.DatabaseURL == "":
		return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
	case c.MaxCommentLength <= 0:
		return fmt.Errorf("%w: max_comment_length must be positive", ErrInvalidConfig)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
