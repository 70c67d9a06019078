package logger

import "fmt"

// Config represents logging configuration
type Config struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	File       string `mapstructure:"file"`        // empty disables file output
	MaxSize    int    `mapstructure:"max_size"`    // MB
	MaxBackups int    `mapstructure:"max_backups"` // rotated files kept
	MaxAge     int    `mapstructure:"max_age"`     // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a console-only info-level configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

// SetDefaults fills unset fields with defaults
func (cfg *Config) SetDefaults() *Config {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 28
	}
	return cfg
}

// Validate validates logging configuration
func (cfg *Config) Validate() error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	if cfg.MaxSize < 0 {
		return fmt.Errorf("max_size must not be negative")
	}
	return nil
}
