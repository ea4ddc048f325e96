package pipeline

import (
	"sort"
)

// Preset names.
const (
	PresetCombined = "combined"
	PresetMerged   = "merged"
)

// DefaultPreset is the pipeline run when none is named.
const DefaultPreset = PresetCombined

// CombinedColumns is the projection allow-list of the combined dataset.
var CombinedColumns = []string{
	// claims
	"claim_id", "patient_hash", "age", "gender", "medical_condition",
	"admission_type", "length_of_stay_days", "insurance_provider",
	"billing_amount", "created_at",
	// policies
	"provider_id", "plan_type", "coverage_percentage", "max_coverage_amount",
	"copay_percentage", "deductible_amount", "annual_out_of_pocket_max",
	"excluded_conditions", "medication_coverage", "diagnostic_test_coverage",
	"admission_type_rules", "waiting_period", "pre_existing_condition_coverage",
	"network_coverage", "emergency_coverage", "preventive_care_coverage",
	"data_source",
}

// Combined projects claims and policies onto CombinedColumns, adds policy_id
// and falls back to claims only when the policy table is missing.
func Combined() Config {
	return Config{
		Name:          PresetCombined,
		ClaimsTable:   "healthcare_claims",
		PolicyTable:   "policy_table",
		ClaimsKey:     "insurance_provider",
		PolicyKey:     "provider_name",
		RequirePolicy: false,
		OutputTable:   "healthcare_analytics_{mode}",
		FilePrefix:    "healthcare_analytics_{mode}",
		Columns:       append([]string(nil), CombinedColumns...),
		IndexTag:      "{mode}",
		Indexes:       []string{"provider", "condition", "billing", "admission", "policy", "plan"},
		Suffix:        "_policy",
		PolicyIDFrom:  "provider_id",
		TopN:          3,
		Formats:       []string{"csv"},
	}
}

// Merged keeps every column of both inputs and requires the policy table.
func Merged() Config {
	return Config{
		Name:          PresetMerged,
		ClaimsTable:   "healthcare_claims",
		PolicyTable:   "policy_table",
		ClaimsKey:     "insurance_provider",
		PolicyKey:     "provider_name",
		RequirePolicy: true,
		OutputTable:   "merged_claims_policies",
		FilePrefix:    "merged_claims_policies",
		IndexTag:      "merged",
		Indexes:       []string{"provider", "condition", "plan", "billing"},
		Suffix:        "_policy",
		TopN:          3,
		Formats:       []string{"csv"},
	}
}

// Presets returns the built-in pipelines keyed by name.
func Presets() map[string]Config {
	return map[string]Config{
		PresetCombined: Combined(),
		PresetMerged:   Merged(),
	}
}

// Preset returns a built-in pipeline by name.
func Preset(name string) (Config, bool) {
	cfg, ok := Presets()[name]
	return cfg, ok
}

// PresetNames returns the built-in pipeline names, sorted.
func PresetNames() []string {
	presets := Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
