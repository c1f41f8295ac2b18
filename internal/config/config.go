// Package config holds the settings shared by the oasconform commands.
// Values come from config.toml, OASCONFORM_* environment variables and flags,
// merged by viper.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/spf13/viper"
)

// Config is the decoded configuration
type Config struct {
	Server         string            `mapstructure:"server"`
	Concurrency    int               `mapstructure:"concurrency"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	Comparison     string            `mapstructure:"comparison"`
	ValidateSchema bool              `mapstructure:"validate_schema"`
	LogLevel       string            `mapstructure:"log_level"`
	UserAgent      string            `mapstructure:"user_agent"`
	Credentials    map[string]string `mapstructure:"credentials"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("concurrency", 1)
	v.SetDefault("timeout", "30s")
	v.SetDefault("comparison", conformance.CompareJSON)
	v.SetDefault("validate_schema", true)
	v.SetDefault("log_level", "warn")
	v.SetDefault("user_agent", "oasconform/1.0")
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency %d: must be at least 1", c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %v: must be positive", c.Timeout)
	}
	if _, err := conformance.ParseComparator(c.Comparison); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateOptions returns the response validation settings
func (c Config) ValidateOptions() (conformance.ValidateOptions, error) {
	comparator, err := conformance.ParseComparator(c.Comparison)
	if err != nil {
		return conformance.ValidateOptions{}, err
	}
	return conformance.ValidateOptions{Comparator: comparator, ValidateSchema: c.ValidateSchema}, nil
}

// Credential returns the secret configured for a security scheme with
// environment references expanded
func (c Config) Credential(scheme string) (string, bool) {
	for name, secret := range c.Credentials {
		// viper lower-cases map keys
		if strings.EqualFold(name, scheme) {
			return os.ExpandEnv(secret), true
		}
	}
	return "", false
}

// ParseLogLevel maps a level name onto a slog level
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level '%s': must be 'debug', 'info', 'warn' or 'error'", s)
	}
	return level, nil
}
