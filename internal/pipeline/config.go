package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/claimjoin/internal/export"
)

// Mode describes which inputs contributed to a run.
type Mode string

// Run modes.
const (
	ModeCombined   Mode = "combined"
	ModeClaimsOnly Mode = "claims_only"
)

// modePlaceholder in OutputTable, FilePrefix and IndexTag expands to the Mode.
const modePlaceholder = "{mode}"

// PolicyIDColumn is the cross-reference column added to combined output.
const PolicyIDColumn = "policy_id"

// IndexColumns maps index name suffixes to the columns they cover.
var IndexColumns = map[string]string{
	"provider":  "insurance_provider",
	"condition": "medical_condition",
	"billing":   "billing_amount",
	"admission": "admission_type",
	"policy":    PolicyIDColumn,
	"plan":      "plan_type",
}

// Config parameterizes one join pipeline.
type Config struct {
	Name string `koanf:"-" yaml:"-"`

	ClaimsTable string `koanf:"claims_table" yaml:"claims_table"`
	PolicyTable string `koanf:"policy_table" yaml:"policy_table"`
	ClaimsKey   string `koanf:"claims_key" yaml:"claims_key"`
	PolicyKey   string `koanf:"policy_key" yaml:"policy_key"`

	// RequirePolicy makes a missing policy table fatal instead of falling
	// back to a claims-only run.
	RequirePolicy bool `koanf:"require_policy" yaml:"require_policy"`

	OutputTable string `koanf:"output_table" yaml:"output_table"`
	FilePrefix  string `koanf:"file_prefix" yaml:"file_prefix"`

	// Columns is the projection allow-list. Empty keeps every column.
	Columns []string `koanf:"columns" yaml:"columns,omitempty"`

	IndexTag string   `koanf:"index_tag" yaml:"index_tag"`
	Indexes  []string `koanf:"indexes" yaml:"indexes"`

	NormalizeKeys bool   `koanf:"normalize_keys" yaml:"normalize_keys"`
	Suffix        string `koanf:"suffix" yaml:"suffix"`

	// PolicyIDFrom names the column copied into policy_id. Empty disables it.
	PolicyIDFrom string `koanf:"policy_id_from" yaml:"policy_id_from,omitempty"`

	TopN        int      `koanf:"top_n" yaml:"top_n"`
	GroupByPlan bool     `koanf:"group_by_plan" yaml:"group_by_plan"`
	Formats     []string `koanf:"formats" yaml:"formats"`
}

// Validate checks that the pipeline can run.
func (c *Config) Validate() error {
	var errs []error
	if c.ClaimsTable == "" {
		errs = append(errs, errors.New("claims_table is required"))
	}
	if c.ClaimsKey == "" {
		errs = append(errs, errors.New("claims_key is required"))
	}
	if c.PolicyTable != "" && c.PolicyKey == "" {
		errs = append(errs, errors.New("policy_key is required when policy_table is set"))
	}
	if c.RequirePolicy && c.PolicyTable == "" {
		errs = append(errs, errors.New("require_policy is set but policy_table is empty"))
	}
	if c.OutputTable == "" {
		errs = append(errs, errors.New("output_table is required"))
	}
	for _, name := range c.Indexes {
		if _, ok := IndexColumns[name]; !ok {
			errs = append(errs, fmt.Errorf("unknown index %q (expected one of %s)", name, strings.Join(IndexNames(), ", ")))
		}
	}
	for _, f := range c.Formats {
		if _, err := export.ParseFormat(f); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pipeline %s: %w", c.Name, errors.Join(errs...))
	}
	return nil
}

// TableName returns the output table for mode.
func (c *Config) TableName(mode Mode) string {
	return expand(c.OutputTable, mode)
}

// Prefix returns the export file prefix for mode. It defaults to the table name.
func (c *Config) Prefix(mode Mode) string {
	if c.FilePrefix == "" {
		return c.TableName(mode)
	}
	return expand(c.FilePrefix, mode)
}

// Tag returns the index name tag for mode.
func (c *Config) Tag(mode Mode) string {
	if c.IndexTag == "" {
		return string(mode)
	}
	return expand(c.IndexTag, mode)
}

// ExportFormats returns the configured formats, CSV when none are set.
func (c *Config) ExportFormats() []export.Format {
	if len(c.Formats) == 0 {
		return []export.Format{export.FormatCSV}
	}
	out := make([]export.Format, len(c.Formats))
	for i, f := range c.Formats {
		out[i] = export.Format(f)
	}
	return out
}

func expand(s string, mode Mode) string {
	return strings.ReplaceAll(s, modePlaceholder, string(mode))
}

// IndexNames returns the known index suffixes, sorted.
func IndexNames() []string {
	names := make([]string, 0, len(IndexColumns))
	for name := range IndexColumns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
