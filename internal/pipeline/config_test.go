package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leapstack-labs/claimjoin/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"combined", "merged"}, PresetNames())

	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			cfg, ok := Preset(name)
			require.True(t, ok)
			assert.Equal(t, name, cfg.Name)
			assert.NoError(t, cfg.Validate())
		})
	}

	_, ok := Preset("nope")
	assert.False(t, ok)
}

func TestPresets_AreCopies(t *testing.T) {
	a := Combined()
	a.Columns[0] = "changed"
	assert.Equal(t, "claim_id", Combined().Columns[0])
}

func TestConfig_Names(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		mode      Mode
		wantTable string
		wantFile  string
		wantTag   string
	}{
		{
			name:      "combined with policies",
			cfg:       Combined(),
			mode:      ModeCombined,
			wantTable: "healthcare_analytics_combined",
			wantFile:  "healthcare_analytics_combined",
			wantTag:   "combined",
		},
		{
			name:      "combined without policies",
			cfg:       Combined(),
			mode:      ModeClaimsOnly,
			wantTable: "healthcare_analytics_claims_only",
			wantFile:  "healthcare_analytics_claims_only",
			wantTag:   "claims_only",
		},
		{
			name:      "merged is fixed",
			cfg:       Merged(),
			mode:      ModeCombined,
			wantTable: "merged_claims_policies",
			wantFile:  "merged_claims_policies",
			wantTag:   "merged",
		},
		{
			name:      "prefix and tag default from table and mode",
			cfg:       Config{OutputTable: "out_{mode}"},
			mode:      ModeCombined,
			wantTable: "out_combined",
			wantFile:  "out_combined",
			wantTag:   "combined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTable, tt.cfg.TableName(tt.mode))
			assert.Equal(t, tt.wantFile, tt.cfg.Prefix(tt.mode))
			assert.Equal(t, tt.wantTag, tt.cfg.Tag(tt.mode))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing claims table", func(c *Config) { c.ClaimsTable = "" }, "claims_table is required"},
		{"missing claims key", func(c *Config) { c.ClaimsKey = "" }, "claims_key is required"},
		{"missing policy key", func(c *Config) { c.PolicyKey = "" }, "policy_key is required"},
		{"require without table", func(c *Config) { c.PolicyTable = ""; c.RequirePolicy = true }, "require_policy"},
		{"missing output table", func(c *Config) { c.OutputTable = "" }, "output_table is required"},
		{"unknown index", func(c *Config) { c.Indexes = []string{"gender"} }, `unknown index "gender"`},
		{"unknown format", func(c *Config) { c.Formats = []string{"xlsx"} }, `unknown export format "xlsx"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Combined()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ExportFormats(t *testing.T) {
	assert.Equal(t, []export.Format{export.FormatCSV}, (&Config{}).ExportFormats())
	assert.Equal(t, []export.Format{export.FormatCSV, export.FormatParquet},
		(&Config{Formats: []string{"csv", "parquet"}}).ExportFormats())
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing input", &MissingInputError{Table: "healthcare_claims", Err: cause}, "required input table healthcare_claims is missing: boom"},
		{"persistence", &PersistenceError{Sink: SinkIndex, Target: "idx_combined_plan", Err: cause}, "failed to write index idx_combined_plan: boom"},
		{"reporting", &ReportingError{Err: cause}, "summary statistics unavailable: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tt.err), cause)
		})
	}
}
