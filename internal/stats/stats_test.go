package stats

import (
	"testing"

	"github.com/leapstack-labs/claimjoin/pkg/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claims(rows ...[]any) *relation.Relation {
	return relation.MustNew("final", []string{"insurance_provider", "billing_amount", "plan_type"}, rows)
}

func TestCompute_Totals(t *testing.T) {
	tests := []struct {
		name    string
		rel     *relation.Relation
		total   float64
		mean    float64
		rows    int
		perProv int
	}{
		{
			name: "simple amounts",
			rel: claims(
				[]any{"Aetna", 100.0, "Gold"},
				[]any{"Aetna", 200.0, "Gold"},
				[]any{"Cigna", 300.0, "Silver"},
			),
			total: 600, mean: 200, rows: 3, perProv: 2,
		},
		{
			name: "column order does not matter",
			rel: relation.MustNew("final", []string{"billing_amount", "plan_type", "insurance_provider"}, [][]any{
				{int64(300), "Silver", "Cigna"},
				{int64(100), "Gold", "Aetna"},
				{int64(200), "Gold", "Aetna"},
			}),
			total: 600, mean: 200, rows: 3, perProv: 2,
		},
		{
			name: "null amounts are skipped in the mean",
			rel: claims(
				[]any{"Aetna", 100.0, "Gold"},
				[]any{"Aetna", nil, "Gold"},
				[]any{"Cigna", "300", nil},
			),
			total: 400, mean: 200, rows: 3, perProv: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compute(tt.rel, DefaultOptions())
			require.NoError(t, err)

			assert.Equal(t, tt.rows, s.Rows)
			assert.InDelta(t, tt.total, s.Total, 1e-9)
			assert.InDelta(t, tt.mean, s.Mean, 1e-9)
			assert.Equal(t, tt.perProv, s.Providers)
			assert.True(t, s.HasAmount)
		})
	}
}

func TestCompute_PlanTypes(t *testing.T) {
	s, err := Compute(claims(
		[]any{"Aetna", 1.0, "Gold"},
		[]any{"Aetna", 1.0, "Silver"},
		[]any{"Cigna", 1.0, nil},
	), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, s.HasPlanType)
	assert.Equal(t, 2, s.PlanTypes)

	noPlan := relation.MustNew("final", []string{"insurance_provider", "billing_amount"}, [][]any{{"Aetna", 1.0}})
	s, err = Compute(noPlan, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, s.HasPlanType)
	assert.Zero(t, s.PlanTypes)
}

func TestCompute_TopProviders(t *testing.T) {
	rel := claims(
		[]any{"Humana", 50.0, "Gold"},
		[]any{"Cigna", 300.0, "Gold"},
		[]any{"Aetna", 100.0, "Gold"},
		[]any{"Cigna", 100.0, "Silver"},
		[]any{"Aetna", 200.0, "Gold"},
		[]any{"Kaiser", 10.0, "Gold"},
		[]any{nil, 999.0, "Gold"},
	)

	s, err := Compute(rel, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, s.TopProviders, 3)
	assert.Equal(t, Group{Provider: "Aetna", Claims: 2, Mean: 150, Total: 300}, s.TopProviders[0])
	assert.Equal(t, Group{Provider: "Cigna", Claims: 2, Mean: 200, Total: 400}, s.TopProviders[1])
	assert.Equal(t, "Humana", s.TopProviders[2].Provider, "ties broken by name")
	assert.Equal(t, 4, s.Providers, "null providers are not counted")

	opts := DefaultOptions()
	opts.TopN = -1
	all, err := Compute(rel, opts)
	require.NoError(t, err)
	assert.Len(t, all.TopProviders, 4)
}

func TestCompute_GroupByPlan(t *testing.T) {
	opts := DefaultOptions()
	opts.GroupByPlan = true

	s, err := Compute(claims(
		[]any{"Aetna", 100.0, "Gold"},
		[]any{"Aetna", 300.0, "Gold"},
		[]any{"Aetna", 50.0, "Silver"},
		[]any{"Cigna", 10.0, nil},
	), opts)
	require.NoError(t, err)

	require.Len(t, s.TopPlans, 2)
	assert.Equal(t, Group{Provider: "Aetna", PlanType: "Gold", Claims: 2, Mean: 200, Total: 400}, s.TopPlans[0])
	assert.Equal(t, Group{Provider: "Aetna", PlanType: "Silver", Claims: 1, Mean: 50, Total: 50}, s.TopPlans[1])
}

func TestCompute_Partial(t *testing.T) {
	t.Run("empty relation", func(t *testing.T) {
		s, err := Compute(claims(), DefaultOptions())
		require.ErrorIs(t, err, ErrEmptyRelation)
		require.NotNil(t, s)
		assert.Zero(t, s.Rows)
	})

	t.Run("missing amount column", func(t *testing.T) {
		rel := relation.MustNew("final", []string{"insurance_provider"}, [][]any{{"Aetna"}, {"Cigna"}})
		s, err := Compute(rel, DefaultOptions())

		var missing *relation.MissingColumnError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "billing_amount", missing.Column)
		require.NotNil(t, s)
		assert.Equal(t, 2, s.Rows)
		assert.Equal(t, 2, s.Providers)
		assert.False(t, s.HasAmount)
	})
}
