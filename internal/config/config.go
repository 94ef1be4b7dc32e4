// Package config loads CLI configuration from files, env vars, and flags, and validates it.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the CLI configuration.
type Config struct {
	Database       DatabaseConfig `mapstructure:"database"`
	Dialect        string         `mapstructure:"dialect"`
	EscapeLiterals bool           `mapstructure:"escape_literals"`
	Logging        LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds the driver name and data source.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite3, sqlite, or postgres
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

const (
	defaultDriver = "sqlite3"
	defaultDSN    = ":memory:"
)

var (
	validDrivers  = []string{"sqlite3", "sqlite", "postgres"}
	validDialects = []string{"sqlite", "postgres"}
	validLevels   = []string{"debug", "info", "warn", "error"}
	validFormats  = []string{"json", "text"}
)

// EffectiveDialect returns the configured dialect, or the one implied by the driver.
func (c *Config) EffectiveDialect() string {
	if c.Dialect != "" {
		return strings.ToLower(c.Dialect)
	}
	if c.Database.Driver == "postgres" {
		return "postgres"
	}
	return "sqlite"
}

// ValidationResult collects every problem found in a configuration.
type ValidationResult struct {
	Errors []string
}

// HasErrors reports whether validation found any problem.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *ValidationResult) Error() string {
	return "invalid configuration: " + strings.Join(r.Errors, "; ")
}

func (r *ValidationResult) addf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for unknown drivers, dialects and logging settings.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	if !oneOf(c.Database.Driver, validDrivers) {
		result.addf("database.driver must be one of %s, got %q", strings.Join(validDrivers, ", "), c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		result.addf("database.dsn is required")
	}
	if c.Database.MaxOpenConns < 1 {
		result.addf("database.max_open_conns must be at least 1, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.ConnMaxLifetime < 0 {
		result.addf("database.conn_max_lifetime must not be negative")
	}
	if c.Dialect != "" && !oneOf(strings.ToLower(c.Dialect), validDialects) {
		result.addf("dialect must be one of %s, got %q", strings.Join(validDialects, ", "), c.Dialect)
	}
	if !oneOf(c.Logging.Level, validLevels) {
		result.addf("logging.level must be one of %s, got %q", strings.Join(validLevels, ", "), c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, validFormats) {
		result.addf("logging.format must be one of %s, got %q", strings.Join(validFormats, ", "), c.Logging.Format)
	}

	return result
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
