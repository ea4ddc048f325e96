package relation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	claimColumns  = []string{"claim_id", "insurance_provider", "billing_amount"}
	policyColumns = []string{"provider_name", "provider_id", "plan_type"}
)

func claimsOf(providers ...any) *Relation {
	rows := make([][]any, len(providers))
	for i, p := range providers {
		rows[i] = []any{int64(i + 1), p, float64(100 * (i + 1))}
	}
	return MustNew("healthcare_claims", claimColumns, rows)
}

func policiesOf(entries ...[2]string) *Relation {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e[0], fmt.Sprintf("P%03d", i+1), e[1]}
	}
	return MustNew("policy_table", policyColumns, rows)
}

var providerJoin = JoinSpec{LeftKey: "insurance_provider", RightKey: "provider_name"}

func TestLeftJoin_AllMatched(t *testing.T) {
	claims := claimsOf("Aetna", "Aetna", "Cigna")
	policies := policiesOf([2]string{"Aetna", "PPO"}, [2]string{"Cigna", "HMO"})

	joined, err := LeftJoin(claims, policies, providerJoin)
	require.NoError(t, err)

	assert.Equal(t, 3, joined.Len())
	for i := range joined.Rows {
		for _, col := range policyColumns {
			assert.NotNil(t, joined.Value(i, col), "row %d column %s", i, col)
		}
	}
	assert.Equal(t, "PPO", joined.Value(0, "plan_type"))
	assert.Equal(t, "PPO", joined.Value(1, "plan_type"))
	assert.Equal(t, "HMO", joined.Value(2, "plan_type"))
}

func TestLeftJoin_UnmatchedRowsCarryNulls(t *testing.T) {
	claims := claimsOf("Aetna", "UnitedHealth")
	policies := policiesOf([2]string{"Aetna", "PPO"})

	joined, err := LeftJoin(claims, policies, providerJoin)
	require.NoError(t, err)

	require.Equal(t, 2, joined.Len())
	assert.Equal(t, "UnitedHealth", joined.Value(1, "insurance_provider"))
	for _, col := range policyColumns {
		assert.Nil(t, joined.Value(1, col), "unmatched row should have NULL %s", col)
	}
	assert.Equal(t, "P001", joined.Value(0, "provider_id"))
}

func TestLeftJoin_FanOut(t *testing.T) {
	claims := claimsOf("Cigna")
	policies := policiesOf([2]string{"Cigna", "HMO"}, [2]string{"Aetna", "PPO"}, [2]string{"Cigna", "EPO"})

	joined, err := LeftJoin(claims, policies, providerJoin)
	require.NoError(t, err)

	require.Equal(t, 2, joined.Len())
	for _, col := range claimColumns {
		assert.Equal(t, joined.Value(0, col), joined.Value(1, col), "claim field %s should be shared", col)
	}
	// Fan-out rows follow the policy table order.
	assert.Equal(t, "HMO", joined.Value(0, "plan_type"))
	assert.Equal(t, "EPO", joined.Value(1, "plan_type"))
	assert.Equal(t, "P001", joined.Value(0, "provider_id"))
	assert.Equal(t, "P003", joined.Value(1, "provider_id"))
}

func TestLeftJoin_PreservesLeftOrder(t *testing.T) {
	claims := claimsOf("Cigna", "Humana", "Aetna", "Cigna", "Aetna")
	policies := policiesOf([2]string{"Aetna", "PPO"}, [2]string{"Cigna", "HMO"})

	joined, err := LeftJoin(claims, policies, providerJoin)
	require.NoError(t, err)

	ids, _ := joined.Column("claim_id")
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, ids)
}

func TestLeftJoin_RowCountProperty(t *testing.T) {
	tests := []struct {
		name     string
		claims   *Relation
		policies *Relation
		fanOut   bool
	}{
		{
			name:     "one policy per provider",
			claims:   claimsOf("Aetna", "Cigna", "Aetna", "Humana"),
			policies: policiesOf([2]string{"Aetna", "PPO"}, [2]string{"Cigna", "HMO"}),
		},
		{
			name:     "duplicate policy on matched provider",
			claims:   claimsOf("Aetna", "Cigna"),
			policies: policiesOf([2]string{"Aetna", "PPO"}, [2]string{"Aetna", "HMO"}),
			fanOut:   true,
		},
		{
			name:     "duplicate policy on unused provider",
			claims:   claimsOf("Aetna"),
			policies: policiesOf([2]string{"Aetna", "PPO"}, [2]string{"Blue Cross", "PPO"}, [2]string{"Blue Cross", "HMO"}),
		},
		{
			name:     "empty claims",
			claims:   claimsOf(),
			policies: policiesOf([2]string{"Aetna", "PPO"}),
		},
		{
			name:     "empty policies",
			claims:   claimsOf("Aetna", "Cigna"),
			policies: policiesOf(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			joined, err := LeftJoin(tt.claims, tt.policies, providerJoin)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, joined.Len(), tt.claims.Len())
			if tt.fanOut {
				assert.Greater(t, joined.Len(), tt.claims.Len())
			} else {
				assert.Equal(t, tt.claims.Len(), joined.Len())
			}
		})
	}
}

func TestLeftJoin_NullKeysNeverMatch(t *testing.T) {
	claims := claimsOf(nil, "Aetna")
	policies := MustNew("policy_table", policyColumns, [][]any{
		{nil, "P001", "PPO"},
		{"Aetna", "P002", "HMO"},
	})

	joined, err := LeftJoin(claims, policies, providerJoin)
	require.NoError(t, err)

	require.Equal(t, 2, joined.Len())
	assert.Nil(t, joined.Value(0, "provider_id"))
	assert.Equal(t, "P002", joined.Value(1, "provider_id"))
}

func TestLeftJoin_ExactMatchOnly(t *testing.T) {
	claims := claimsOf("aetna", "Aetna ", "Aetna")
	policies := policiesOf([2]string{"Aetna", "PPO"})

	exact, err := LeftJoin(claims, policies, providerJoin)
	require.NoError(t, err)
	assert.Nil(t, exact.Value(0, "plan_type"))
	assert.Nil(t, exact.Value(1, "plan_type"))
	assert.Equal(t, "PPO", exact.Value(2, "plan_type"))

	folded := providerJoin
	folded.Key = FoldKey
	normalized, err := LeftJoin(claims, policies, folded)
	require.NoError(t, err)
	for i := 0; i < normalized.Len(); i++ {
		assert.Equal(t, "PPO", normalized.Value(i, "plan_type"), "row %d", i)
	}
}

func TestLeftJoin_ColumnCollisions(t *testing.T) {
	claims := MustNew("claims", []string{"claim_id", "insurance_provider", "data_source"}, [][]any{
		{int64(1), "Aetna", "ehr"},
	})
	policies := MustNew("policies", []string{"provider_name", "data_source", "data_source_policy"}, [][]any{
		{"Aetna", "broker", "manual"},
	})

	joined, err := LeftJoin(claims, policies, providerJoin)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"claim_id", "insurance_provider", "data_source",
		"provider_name", "data_source_policy_2", "data_source_policy",
	}, joined.Columns)
	assert.Equal(t, "ehr", joined.Value(0, "data_source"))
	assert.Equal(t, "broker", joined.Value(0, "data_source_policy_2"))
	assert.Equal(t, "manual", joined.Value(0, "data_source_policy"))
}

func TestLeftJoin_CustomSuffix(t *testing.T) {
	claims := MustNew("claims", []string{"insurance_provider", "created_at"}, [][]any{{"Aetna", "2024-01-01"}})
	policies := MustNew("policies", []string{"provider_name", "created_at"}, [][]any{{"Aetna", "2023-06-30"}})

	joined, err := LeftJoin(claims, policies, JoinSpec{LeftKey: "insurance_provider", RightKey: "provider_name", Suffix: "_y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"insurance_provider", "created_at", "provider_name", "created_at_y"}, joined.Columns)
}

func TestLeftJoin_MissingKeyColumn(t *testing.T) {
	claims := claimsOf("Aetna")
	policies := policiesOf([2]string{"Aetna", "PPO"})

	_, err := LeftJoin(claims, policies, JoinSpec{LeftKey: "provider", RightKey: "provider_name"})
	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "healthcare_claims", missing.Relation)
	assert.Equal(t, "provider", missing.Column)

	_, err = LeftJoin(claims, policies, JoinSpec{LeftKey: "insurance_provider", RightKey: "name"})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "policy_table", missing.Relation)
}

func TestLeftJoin_DoesNotMutateInputs(t *testing.T) {
	claims := claimsOf("Aetna", "Cigna")
	policies := policiesOf([2]string{"Aetna", "PPO"})
	before := claims.Clone()

	joined, err := LeftJoin(claims, policies, providerJoin)
	require.NoError(t, err)
	joined.Rows[0][0] = int64(99)

	assert.Equal(t, before.Rows, claims.Rows)
	assert.Equal(t, before.Columns, claims.Columns)
}
