// Package diagnostics reports how the claims and policy relations overlap on
// the join key. It only reads its inputs and never changes how the join runs.
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// Report summarizes key overlap between the claims (left) and policy (right)
// relations under one key function.
type Report struct {
	ClaimsRows int `json:"claims_rows"`
	PolicyRows int `json:"policy_rows"`

	// ClaimsKeys and PolicyKeys count distinct non-NULL keys per side.
	ClaimsKeys int `json:"claims_keys"`
	PolicyKeys int `json:"policy_keys"`

	// ClaimsNullKeys and PolicyNullKeys count rows with a NULL key.
	ClaimsNullKeys int `json:"claims_null_keys"`
	PolicyNullKeys int `json:"policy_null_keys"`

	// Matching is the number of keys present on both sides.
	Matching int `json:"matching"`

	// ClaimsOnly lists claims providers absent from the policy relation, sorted.
	ClaimsOnly []string `json:"claims_only,omitempty"`

	// PoliciesOnly lists policy providers that no claim references, sorted.
	PoliciesOnly []string `json:"policies_only,omitempty"`

	// FanOutKeys lists policy keys carrying more than one row, sorted by key.
	FanOutKeys []relation.KeyCount `json:"fan_out_keys,omitempty"`

	// UnmatchedRows is the number of claim rows that receive no policy.
	UnmatchedRows int `json:"unmatched_rows"`

	// ExpectedRows is the joined row count implied by the key counts.
	ExpectedRows int `json:"expected_rows"`

	// ClaimsProviders and PolicyProviders are the sorted distinct keys per side.
	ClaimsProviders []string `json:"claims_providers"`
	PolicyProviders []string `json:"policy_providers"`
}

// Analyze computes the overlap report for a left join of claims with policies.
// The key function of spec is applied to both sides, matching the join itself.
func Analyze(claims, policies *relation.Relation, spec relation.JoinSpec) (*Report, error) {
	keyFn := spec.Key
	if keyFn == nil {
		keyFn = relation.ExactKey
	}

	left, leftNulls, err := relation.DistinctKeys(claims, spec.LeftKey, keyFn)
	if err != nil {
		return nil, fmt.Errorf("failed to collect claims keys: %w", err)
	}
	right, rightNulls, err := relation.DistinctKeys(policies, spec.RightKey, keyFn)
	if err != nil {
		return nil, fmt.Errorf("failed to collect policy keys: %w", err)
	}

	rightCount := make(map[string]int, len(right))
	for _, kc := range right {
		rightCount[kc.Key] = kc.Count
	}
	leftSet := make(map[string]bool, len(left))

	r := &Report{
		ClaimsRows:     claims.Len(),
		PolicyRows:     policies.Len(),
		ClaimsKeys:     len(left),
		PolicyKeys:     len(right),
		ClaimsNullKeys: leftNulls,
		PolicyNullKeys: rightNulls,
		UnmatchedRows:  leftNulls,
		ExpectedRows:   leftNulls,
	}

	for _, kc := range left {
		leftSet[kc.Key] = true
		name := relation.DisplayKey(kc.Key)
		r.ClaimsProviders = append(r.ClaimsProviders, name)
		n, ok := rightCount[kc.Key]
		if !ok {
			r.ClaimsOnly = append(r.ClaimsOnly, name)
			r.UnmatchedRows += kc.Count
			r.ExpectedRows += kc.Count
			continue
		}
		r.Matching++
		r.ExpectedRows += kc.Count * n
	}

	for _, kc := range right {
		name := relation.DisplayKey(kc.Key)
		r.PolicyProviders = append(r.PolicyProviders, name)
		if !leftSet[kc.Key] {
			r.PoliciesOnly = append(r.PoliciesOnly, name)
		}
		if kc.Count > 1 {
			r.FanOutKeys = append(r.FanOutKeys, relation.KeyCount{Key: name, Count: kc.Count})
		}
	}

	sort.Strings(r.ClaimsOnly)
	sort.Strings(r.PoliciesOnly)
	sort.Strings(r.ClaimsProviders)
	sort.Strings(r.PolicyProviders)
	sort.Slice(r.FanOutKeys, func(i, j int) bool { return r.FanOutKeys[i].Key < r.FanOutKeys[j].Key })

	return r, nil
}

// HasFanOut reports whether any claim will be duplicated by the join.
func (r *Report) HasFanOut() bool {
	return r.ExpectedRows > r.ClaimsRows
}

// Warnings returns merge-quality warnings, one per finding.
func (r *Report) Warnings() []string {
	var out []string
	if r.UnmatchedRows > 0 {
		out = append(out, fmt.Sprintf("%d claims without matching policies", r.UnmatchedRows))
	}
	if len(r.FanOutKeys) > 0 {
		out = append(out, fmt.Sprintf("%d providers with multiple policies; joined rows exceed claims by %d",
			len(r.FanOutKeys), r.ExpectedRows-r.ClaimsRows))
	}
	if r.ClaimsNullKeys > 0 {
		out = append(out, fmt.Sprintf("%d claims with no provider", r.ClaimsNullKeys))
	}
	return out
}
