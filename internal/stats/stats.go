// Package stats computes the descriptive summary printed after a run.
package stats

import (
	"errors"
	"sort"

	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// ErrEmptyRelation is returned when there are no rows to summarize.
var ErrEmptyRelation = errors.New("relation has no rows; mean is undefined")

// DefaultTopN is the number of providers shown in the breakdown.
const DefaultTopN = 3

// Options selects the columns and shape of the summary.
type Options struct {
	AmountColumn   string
	ProviderColumn string
	PlanColumn     string

	// TopN truncates the breakdowns. Zero means DefaultTopN, negative means all.
	TopN int

	// GroupByPlan adds a provider and plan type breakdown.
	GroupByPlan bool
}

// DefaultOptions returns the options for the healthcare claims columns.
func DefaultOptions() Options {
	return Options{
		AmountColumn:   "billing_amount",
		ProviderColumn: "insurance_provider",
		PlanColumn:     "plan_type",
		TopN:           DefaultTopN,
	}
}

// Group is the count, mean and sum of the amount for one group of rows.
type Group struct {
	Provider string  `json:"provider"`
	PlanType string  `json:"plan_type,omitempty"`
	Claims   int     `json:"claims"`
	Mean     float64 `json:"mean"`
	Total    float64 `json:"total"`
}

// Summary holds the aggregate statistics of a relation.
type Summary struct {
	Rows        int     `json:"rows"`
	Total       float64 `json:"total"`
	Mean        float64 `json:"mean"`
	HasAmount   bool    `json:"has_amount"`
	Providers   int     `json:"providers"`
	PlanTypes   int     `json:"plan_types"`
	HasPlanType bool    `json:"has_plan_type"`

	// TopProviders is ordered by descending claims, ties by provider name.
	TopProviders []Group `json:"top_providers"`

	// TopPlans is set when grouping by plan type.
	TopPlans []Group `json:"top_plans,omitempty"`
}

type acc struct {
	claims int
	n      int
	sum    float64
}

func (a *acc) group(provider, plan string) Group {
	g := Group{Provider: provider, PlanType: plan, Claims: a.claims, Total: a.sum}
	if a.n > 0 {
		g.Mean = a.sum / float64(a.n)
	}
	return g
}

// Compute summarizes rel. On an empty relation or a missing amount column it
// returns the partial summary it could build together with the error.
func Compute(rel *relation.Relation, opts Options) (*Summary, error) {
	if opts.TopN == 0 {
		opts.TopN = DefaultTopN
	}

	s := &Summary{Rows: rel.Len()}
	if s.Rows == 0 {
		return s, ErrEmptyRelation
	}

	amountIdx := rel.ColumnIndex(opts.AmountColumn)
	providerIdx := rel.ColumnIndex(opts.ProviderColumn)
	planIdx := rel.ColumnIndex(opts.PlanColumn)
	s.HasAmount = amountIdx >= 0
	s.HasPlanType = planIdx >= 0

	var amountN int
	providers := make(map[string]*acc)
	plans := make(map[string]bool)
	type pair struct{ provider, plan string }
	pairs := make(map[pair]*acc)

	for _, row := range rel.Rows {
		amount, hasAmount := 0.0, false
		if s.HasAmount {
			amount, hasAmount = relation.AsFloat(row[amountIdx])
			if hasAmount {
				s.Total += amount
				amountN++
			}
		}

		plan, hasPlan := "", false
		if s.HasPlanType {
			plan, hasPlan = relation.AsString(row[planIdx])
			if hasPlan {
				plans[plan] = true
			}
		}

		if providerIdx < 0 {
			continue
		}
		provider, ok := relation.AsString(row[providerIdx])
		if !ok {
			continue
		}
		add(providers, provider, amount, hasAmount)
		if opts.GroupByPlan && hasPlan {
			add(pairs, pair{provider, plan}, amount, hasAmount)
		}
	}

	if amountN > 0 {
		s.Mean = s.Total / float64(amountN)
	}
	s.Providers = len(providers)
	s.PlanTypes = len(plans)

	for name, a := range providers {
		s.TopProviders = append(s.TopProviders, a.group(name, ""))
	}
	s.TopProviders = top(s.TopProviders, opts.TopN)

	if opts.GroupByPlan {
		for p, a := range pairs {
			s.TopPlans = append(s.TopPlans, a.group(p.provider, p.plan))
		}
		s.TopPlans = top(s.TopPlans, opts.TopN)
	}

	if !s.HasAmount {
		return s, &relation.MissingColumnError{Relation: rel.Name, Column: opts.AmountColumn}
	}
	return s, nil
}

func add[K comparable](m map[K]*acc, key K, amount float64, hasAmount bool) {
	a := m[key]
	if a == nil {
		a = &acc{}
		m[key] = a
	}
	a.claims++
	if hasAmount {
		a.n++
		a.sum += amount
	}
}

func top(groups []Group, n int) []Group {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Claims != groups[j].Claims {
			return groups[i].Claims > groups[j].Claims
		}
		if groups[i].Provider != groups[j].Provider {
			return groups[i].Provider < groups[j].Provider
		}
		return groups[i].PlanType < groups[j].PlanType
	})
	if n > 0 && len(groups) > n {
		groups = groups[:n]
	}
	return groups
}
