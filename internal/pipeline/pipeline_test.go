package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/claimjoin/internal/export"
	"github.com/leapstack-labs/claimjoin/internal/state"
	"github.com/leapstack-labs/claimjoin/internal/stats"
	"github.com/leapstack-labs/claimjoin/internal/testutil"
	"github.com/leapstack-labs/claimjoin/pkg/adapter"
	"github.com/leapstack-labs/claimjoin/pkg/adapters/sqlite"
	"github.com/leapstack-labs/claimjoin/pkg/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	adp    *sqlite.Adapter
	runner *Runner
	outDir string
}

func newFixture(t *testing.T, rels ...*relation.Relation) *fixture {
	t.Helper()
	adp, _ := testutil.OpenSQLite(t)
	testutil.Seed(t, adp, rels...)

	outDir := filepath.Join(t.TempDir(), "outputs")
	exporter := &export.Exporter{Dir: outDir, Now: func() time.Time { return runTime }}
	return &fixture{
		adp:    adp,
		runner: NewRunner(adp, exporter, testutil.NewTestLogger(t)),
		outDir: outDir,
	}
}

func (f *fixture) read(t *testing.T, table string) *relation.Relation {
	t.Helper()
	rel, err := f.adp.ReadTable(context.Background(), table)
	require.NoError(t, err)
	return rel
}

func policyColumnsNull(t *testing.T, rel *relation.Relation, row int) {
	t.Helper()
	for _, col := range []string{"provider_id", "plan_type", "coverage_percentage", "data_source", PolicyIDColumn} {
		assert.Nil(t, rel.Value(row, col), "row %d column %s", row, col)
	}
}

func TestRun_AllClaimsMatch(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(
			testutil.Claim(1, "Aetna", 100),
			testutil.Claim(2, "Aetna", 200),
			testutil.Claim(3, "Cigna", 300),
		),
		testutil.Policies(
			testutil.Policy("Aetna", "AET-1", "Gold"),
			testutil.Policy("Cigna", "CIG-1", "Silver"),
		),
	)

	res, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)

	assert.Equal(t, ModeCombined, res.Mode)
	assert.Equal(t, "healthcare_analytics_combined", res.Table)
	assert.Equal(t, 3, res.JoinedRows)
	assert.Zero(t, res.Diagnostics.UnmatchedRows)
	assert.Empty(t, res.Diagnostics.ClaimsOnly)

	out := f.read(t, "healthcare_analytics_combined")
	require.Equal(t, 3, out.Len())
	for i := range out.Rows {
		assert.NotNil(t, out.Value(i, "provider_id"))
		assert.Equal(t, out.Value(i, "provider_id"), out.Value(i, PolicyIDColumn))
	}
	assert.Equal(t, "AET-1", out.Value(0, "provider_id"))
	assert.Equal(t, "CIG-1", out.Value(2, "provider_id"))
}

func TestRun_UnmatchedProvider(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(
			testutil.Claim(1, "Aetna", 100),
			testutil.Claim(2, "UnitedHealth", 200),
		),
		testutil.Policies(testutil.Policy("Aetna", "AET-1", "Gold")),
	)

	res, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)

	assert.Equal(t, 2, res.JoinedRows)
	assert.Equal(t, []string{"UnitedHealth"}, res.Diagnostics.ClaimsOnly)
	assert.Empty(t, res.Diagnostics.PoliciesOnly)
	assert.Equal(t, 1, res.Diagnostics.UnmatchedRows)

	out := f.read(t, "healthcare_analytics_combined")
	assert.Equal(t, "UnitedHealth", out.Value(1, "insurance_provider"))
	policyColumnsNull(t, out, 1)
}

func TestRun_FanOut(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(testutil.Claim(1, "Cigna", 100)),
		testutil.Policies(
			testutil.Policy("Cigna", "CIG-1", "Gold"),
			testutil.Policy("Cigna", "CIG-2", "Silver"),
		),
	)

	res, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)

	assert.Equal(t, 2, res.JoinedRows)
	require.Len(t, res.Diagnostics.FanOutKeys, 1)
	assert.Equal(t, relation.KeyCount{Key: "Cigna", Count: 2}, res.Diagnostics.FanOutKeys[0])

	out := f.read(t, "healthcare_analytics_combined")
	require.Equal(t, 2, out.Len())
	for _, col := range testutil.ClaimsColumns {
		assert.Equal(t, out.Value(0, col), out.Value(1, col), "claim column %s", col)
	}
	assert.Equal(t, "Gold", out.Value(0, "plan_type"))
	assert.Equal(t, "Silver", out.Value(1, "plan_type"))
}

func TestRun_ClaimsOnly(t *testing.T) {
	claims := testutil.Claims(
		testutil.Claim(1, "Aetna", 100),
		testutil.Claim(2, "Cigna", 200),
	)
	f := newFixture(t, claims)

	res, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)

	assert.Equal(t, ModeClaimsOnly, res.Mode)
	assert.Nil(t, res.Diagnostics)
	assert.Equal(t, "healthcare_analytics_claims_only", res.Table)

	out := f.read(t, "healthcare_analytics_claims_only")
	assert.Equal(t, claims.Columns, out.Columns)
	assert.Equal(t, claims.Rows, out.Rows)

	assert.ElementsMatch(t, []string{
		"idx_claims_only_provider", "idx_claims_only_condition",
		"idx_claims_only_billing", "idx_claims_only_admission",
	}, res.Indexes)
	assert.ElementsMatch(t, []string{"idx_claims_only_policy", "idx_claims_only_plan"}, res.SkippedIndexes)

	require.Len(t, res.Files, 1)
	assert.Equal(t, "healthcare_analytics_claims_only_20240102_030405.csv", filepath.Base(res.Files[0].Path))
}

func TestRun_MissingInputs(t *testing.T) {
	t.Run("claims table missing", func(t *testing.T) {
		f := newFixture(t, testutil.Policies(testutil.Policy("Aetna", "AET-1", "Gold")))

		_, err := f.runner.Run(context.Background(), Combined())

		var missing *MissingInputError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "healthcare_claims", missing.Table)
		assert.True(t, adapter.IsTableNotFound(err))

		_, statErr := os.Stat(f.outDir)
		assert.True(t, os.IsNotExist(statErr), "no output before inputs are loaded")
	})

	t.Run("policy table required", func(t *testing.T) {
		f := newFixture(t, testutil.Claims(testutil.Claim(1, "Aetna", 100)))

		_, err := f.runner.Run(context.Background(), Merged())

		var missing *MissingInputError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "policy_table", missing.Table)
	})
}

func TestRun_Merged(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(
			testutil.Claim(1, "Aetna", 100),
			testutil.Claim(2, "UnitedHealth", 200),
		),
		testutil.Policies(testutil.Policy("Aetna", "AET-1", "Gold")),
	)

	res, err := f.runner.Run(context.Background(), Merged())
	require.NoError(t, err)

	assert.Equal(t, "merged_claims_policies", res.Table)
	assert.Len(t, res.Columns, len(testutil.ClaimsColumns)+len(testutil.PolicyColumns))
	assert.NotContains(t, res.Columns, PolicyIDColumn)
	assert.ElementsMatch(t, []string{
		"idx_merged_provider", "idx_merged_condition", "idx_merged_plan", "idx_merged_billing",
	}, res.Indexes)
	assert.Equal(t, "merged_claims_policies_20240102_030405.csv", filepath.Base(res.Files[0].Path))
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(
			testutil.Claim(1, "Aetna", 100),
			testutil.Claim(2, "Humana", 200),
		),
		testutil.Policies(testutil.Policy("Aetna", "AET-1", "Gold")),
	)

	_, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)
	first := f.read(t, "healthcare_analytics_combined")

	second, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)
	again := f.read(t, "healthcare_analytics_combined")

	assert.Equal(t, first.Columns, again.Columns)
	assert.Equal(t, first.Rows, again.Rows)

	// Same timestamp: the second export gets a counter instead of overwriting.
	require.Len(t, second.Files, 1)
	assert.Equal(t, "healthcare_analytics_combined_20240102_030405_1.csv", filepath.Base(second.Files[0].Path))
}

func TestRun_Summary(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(
			testutil.Claim(1, "Aetna", 100),
			testutil.Claim(2, "Aetna", 200),
			testutil.Claim(3, "Cigna", 300),
		),
		testutil.Policies(
			testutil.Policy("Aetna", "AET-1", "Gold"),
			testutil.Policy("Cigna", "CIG-1", "Silver"),
		),
	)

	res, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)
	require.NotNil(t, res.Summary)
	assert.Nil(t, res.ReportErr)

	assert.InDelta(t, 600.0, res.Summary.Total, 1e-9)
	assert.InDelta(t, 200.0, res.Summary.Mean, 1e-9)
	assert.Equal(t, 2, res.Summary.Providers)
	assert.Equal(t, 2, res.Summary.PlanTypes)
	assert.Equal(t, "Aetna", res.Summary.TopProviders[0].Provider)
}

func TestRun_EmptyClaimsIsReportingError(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(),
		testutil.Policies(testutil.Policy("Aetna", "AET-1", "Gold")),
	)

	res, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err, "reporting errors never fail the run")
	require.NotNil(t, res.ReportErr)
	assert.ErrorIs(t, res.ReportErr, stats.ErrEmptyRelation)
	assert.Zero(t, res.JoinedRows)
	assert.Len(t, res.Files, 1)
}

// failingWrites breaks WriteTable while keeping reads working.
type failingWrites struct {
	adapter.Adapter
}

func (failingWrites) WriteTable(context.Context, string, *relation.Relation) error {
	return errors.New("disk full")
}

func TestRun_PersistenceErrors(t *testing.T) {
	seed := []*relation.Relation{
		testutil.Claims(testutil.Claim(1, "Aetna", 100)),
		testutil.Policies(testutil.Policy("Aetna", "AET-1", "Gold")),
	}

	t.Run("table failure still exports the file", func(t *testing.T) {
		f := newFixture(t, seed...)
		f.runner.Adapter = failingWrites{f.adp}

		res, err := f.runner.Run(context.Background(), Combined())

		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, SinkTable, perr.Sink)
		assert.Equal(t, "healthcare_analytics_combined", perr.Target)
		require.Len(t, res.Files, 1, "file export is attempted independently")
		assert.Empty(t, res.Indexes)
		assert.Nil(t, res.Summary, "no summary after a persistence failure")
	})

	t.Run("file failure keeps the table", func(t *testing.T) {
		f := newFixture(t, seed...)
		blocker := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(blocker, nil, 0o600))
		f.runner.Exporter = &export.Exporter{Dir: blocker}

		res, err := f.runner.Run(context.Background(), Combined())

		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, SinkFile, perr.Sink)
		assert.Equal(t, "healthcare_analytics_combined", res.Table)
		assert.Equal(t, 1, f.read(t, "healthcare_analytics_combined").Len())
		assert.Nil(t, res.Summary)
	})
}

func TestRun_Journal(t *testing.T) {
	f := newFixture(t, testutil.Claims(testutil.Claim(1, "Aetna", 100)))
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	defer func() { _ = store.Close() }()
	f.runner.Journal = store

	res, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := store.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, "combined", run.Pipeline)
	assert.Equal(t, string(ModeClaimsOnly), run.Mode)
	assert.Equal(t, int64(1), run.RowCount)
	assert.Equal(t, "healthcare_analytics_claims_only", run.OutputTable)

	cfg := Merged()
	res, err = f.runner.Run(context.Background(), cfg)
	require.Error(t, err)
	run, err = store.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "policy_table")
}

func TestRun_NormalizeKeys(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(testutil.Claim(1, "aetna ", 100)),
		testutil.Policies(testutil.Policy("Aetna", "AET-1", "Gold")),
	)

	exact, err := f.runner.Run(context.Background(), Combined())
	require.NoError(t, err)
	assert.Equal(t, 1, exact.Diagnostics.UnmatchedRows, "keys match literally by default")

	cfg := Combined()
	cfg.NormalizeKeys = true
	folded, err := f.runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, folded.Diagnostics.UnmatchedRows)
	assert.Equal(t, "AET-1", folded.Output.Value(0, "provider_id"))
}

func TestDiagnose_ClaimsOnlyDescribesClaims(t *testing.T) {
	f := newFixture(t, testutil.Claims(testutil.Claim(1, "Aetna", 100)))

	res, err := f.runner.Diagnose(context.Background(), Combined())
	require.NoError(t, err)
	assert.Nil(t, res.Diagnostics)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, "healthcare_claims", res.Tables[0].Name)
}

func TestDiagnose(t *testing.T) {
	f := newFixture(t,
		testutil.Claims(testutil.Claim(1, "Aetna", 100), testutil.Claim(2, "UnitedHealth", 100)),
		testutil.Policies(testutil.Policy("Aetna", "AET-1", "Gold")),
	)

	res, err := f.runner.Diagnose(context.Background(), Combined())
	require.NoError(t, err)
	assert.Equal(t, []string{"UnitedHealth"}, res.Diagnostics.ClaimsOnly)

	require.Len(t, res.Tables, 2)
	assert.Equal(t, "healthcare_claims", res.Tables[0].Name)
	assert.Equal(t, int64(2), res.Tables[0].RowCount)
	assert.Len(t, res.Tables[0].Columns, len(testutil.ClaimsColumns))
	assert.Equal(t, "policy_table", res.Tables[1].Name)
	assert.Equal(t, int64(1), res.Tables[1].RowCount)

	ok, err := f.adp.TableExists(context.Background(), "healthcare_analytics_combined")
	require.NoError(t, err)
	assert.False(t, ok, "diagnose writes nothing")
}
