// Package config provides configuration management for the claimjoin CLI.
//
// Target settings reuse the shared types from pkg/core; pipeline settings
// are layered over the built-in presets from internal/pipeline.
package config

import (
	"github.com/leapstack-labs/claimjoin/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
// This allows CLI code to use config.TargetConfig without importing pkg/core.
type TargetConfig = core.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	Target    *TargetConfig `koanf:"target" yaml:"target"`
	OutputDir string        `koanf:"output_dir" yaml:"output_dir"`
	StatePath string        `koanf:"state_path" yaml:"state_path"`
	Output    string        `koanf:"output" yaml:"output"`
	LogLevel  string        `koanf:"log_level" yaml:"log_level"`
	Verbose   bool          `koanf:"verbose" yaml:"verbose"`

	// Pipeline names the pipeline run when none is given on the command line.
	Pipeline string `koanf:"pipeline" yaml:"pipeline"`

	// Pipelines holds raw per-pipeline overrides. A key naming a preset
	// overrides that preset; other keys define new pipelines, optionally
	// starting from the preset named by their "extends" key.
	Pipelines map[string]map[string]any `koanf:"pipelines" yaml:"pipelines,omitempty"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-" yaml:"-"`
}

// Default configuration values.
const (
	ConfigFileName    = "claimjoin.yaml"
	ConfigFileNameAlt = "claimjoin.yml"
	DefaultTargetType = "sqlite"
	DefaultDatabase   = "db.sqlite"
	DefaultOutputDir  = "outputs"
	DefaultStateFile  = ".claimjoin/state.db"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel   = "warn"
	EnvPrefix         = "CLAIMJOIN_"
)

// extendsKey names the preset a custom pipeline starts from.
const extendsKey = "extends"
