package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/claimjoin/pkg/adapters/sqlite"
	"github.com/leapstack-labs/claimjoin/pkg/core"
	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// ClaimsColumns are the columns of the healthcare_claims fixture table.
var ClaimsColumns = []string{
	"claim_id", "patient_hash", "age", "gender", "medical_condition",
	"admission_type", "length_of_stay_days", "insurance_provider",
	"billing_amount", "created_at",
}

// PolicyColumns are the columns of the policy_table fixture table.
var PolicyColumns = []string{
	"provider_name", "provider_id", "plan_type", "coverage_percentage",
	"max_coverage_amount", "copay_percentage", "deductible_amount",
	"annual_out_of_pocket_max", "excluded_conditions", "medication_coverage",
	"diagnostic_test_coverage", "admission_type_rules", "waiting_period",
	"pre_existing_condition_coverage", "network_coverage", "emergency_coverage",
	"preventive_care_coverage", "data_source",
}

// Claim returns a healthcare_claims row. provider may be nil.
func Claim(id int, provider any, amount float64) []any {
	return []any{
		int64(id), fmt.Sprintf("hash%03d", id), int64(30 + id), "F", "Diabetes",
		"Emergency", int64(id % 7), provider, amount, "2024-01-01 00:00:00",
	}
}

// Policy returns a policy_table row.
func Policy(provider any, providerID, plan string) []any {
	return []any{
		provider, providerID, plan, 80.0,
		100000.0, 20.0, 500.0,
		5000.0, "none", "full",
		"full", "standard", int64(30),
		"covered", "national", "covered",
		"covered", "synthetic",
	}
}

// Claims builds the claims fixture relation.
func Claims(rows ...[]any) *relation.Relation {
	return relation.MustNew("healthcare_claims", ClaimsColumns, rows)
}

// Policies builds the policy fixture relation.
func Policies(rows ...[]any) *relation.Relation {
	return relation.MustNew("policy_table", PolicyColumns, rows)
}

// OpenSQLite connects a SQLite adapter to a fresh database file in a temp
// directory and returns it with the file path. The adapter is closed on cleanup.
func OpenSQLite(t testing.TB) (*sqlite.Adapter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.sqlite")
	adp := sqlite.New(NewTestLogger(t))
	if err := adp.Connect(context.Background(), core.AdapterConfig{Type: "sqlite", Path: path}); err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = adp.Close() })
	return adp, path
}

// Seed writes each relation as a table named after the relation.
func Seed(t testing.TB, adp *sqlite.Adapter, rels ...*relation.Relation) {
	t.Helper()
	for _, rel := range rels {
		if err := adp.WriteTable(context.Background(), rel.Name, rel); err != nil {
			t.Fatalf("failed to seed %s: %v", rel.Name, err)
		}
	}
}

// SeedDatabase creates a closed SQLite database file holding the given
// relations and returns its path.
func SeedDatabase(t testing.TB, dir string, rels ...*relation.Relation) string {
	t.Helper()
	path := filepath.Join(dir, "db.sqlite")
	adp := sqlite.New(nil)
	if err := adp.Connect(context.Background(), core.AdapterConfig{Type: "sqlite", Path: path}); err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer func() { _ = adp.Close() }()
	Seed(t, adp, rels...)
	return path
}
