package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/claimjoin/internal/cli/output"
	"github.com/leapstack-labs/claimjoin/pkg/adapter"
)

// DefaultSchemaForType returns the default schema for a database type.
func DefaultSchemaForType(dbType string) string {
	switch dbType {
	case "postgres":
		return "public"
	case "sqlite", "duckdb":
		return "main"
	default:
		return ""
	}
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Type = strings.ToLower(strings.TrimSpace(t.Type))
	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}

// ValidateTarget checks that the target has the fields its type needs.
func ValidateTarget(t *TargetConfig) error {
	if t == nil {
		return errors.New("target is required")
	}
	if t.Type == "" {
		return errors.New("target type is required")
	}
	if !adapter.IsRegistered(t.Type) {
		return &adapter.UnknownAdapterError{Type: t.Type, Available: adapter.ListAdapters()}
	}
	switch t.Type {
	case "sqlite", "duckdb":
		if t.Database == "" {
			return fmt.Errorf("%s target requires a database path", t.Type)
		}
	case "postgres":
		if t.Host == "" {
			return errors.New("postgres target requires a host")
		}
		if t.Database == "" {
			return errors.New("postgres target requires a database name")
		}
	}
	return nil
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q (expected debug, info, warn or error)", s)
	}
	return level, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if err := ValidateTarget(c.Target); err != nil {
		errs = append(errs, fmt.Errorf("invalid target configuration: %w", err))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.Output != "" && output.Mode(c.Output) == output.ModeAuto && c.Output != string(output.ModeAuto) {
		errs = append(errs, fmt.Errorf("invalid output %q (expected one of %s)", c.Output, strings.Join(output.ValidModes(), ", ")))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
