package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/claimjoin/internal/cli/output"
	"github.com/leapstack-labs/claimjoin/internal/diagnostics"
	"github.com/leapstack-labs/claimjoin/internal/pipeline"
	"github.com/leapstack-labs/claimjoin/internal/stats"
	"github.com/leapstack-labs/claimjoin/pkg/core"
)

// maxListed caps provider lists in non-verbose output.
const maxListed = 5

// RunOutput is the JSON output for the run and diagnose commands.
type RunOutput struct {
	*pipeline.Result
	Status      string `json:"status"`
	ReportError string `json:"report_error,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newRunOutput(res *pipeline.Result, err error) *RunOutput {
	if res == nil {
		res = &pipeline.Result{}
	}
	out := &RunOutput{Result: res, Status: "completed"}
	if res.ReportErr != nil {
		out.ReportError = res.ReportErr.Error()
	}
	if err != nil {
		out.Status = "failed"
		out.Error = err.Error()
	}
	return out
}

var titleCaser = cases.Title(language.English)

func modeTitle(mode pipeline.Mode) string {
	return titleCaser.String(strings.ReplaceAll(string(mode), "_", " "))
}

// renderInputs writes the banner and load counts.
func renderInputs(r *output.Renderer, title string, res *pipeline.Result) {
	r.Header(1, title)
	r.KeyValue("Pipeline", res.Pipeline)
	if res.Mode != "" {
		r.KeyValue("Mode", modeTitle(res.Mode))
	}
	r.KeyValue("Claims", res.ClaimsRows)
	if res.Mode == pipeline.ModeCombined {
		r.KeyValue("Policies", res.PolicyRows)
	}
	r.Println("")
}

// renderTables writes the shape of each input table; verbose adds its columns.
func renderTables(r *output.Renderer, tables []*core.TableMetadata, verbose bool) {
	if len(tables) == 0 {
		return
	}
	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, []string{t.Name, strconv.Itoa(len(t.Columns)), strconv.FormatInt(t.RowCount, 10)})
	}
	r.Header(2, "Tables")
	r.Table([]string{"Table", "Columns", "Rows"}, rows)

	if !verbose {
		return
	}
	for _, t := range tables {
		cols := make([][]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, []string{strconv.Itoa(c.Position), c.Name, c.Type, strconv.FormatBool(c.Nullable)})
		}
		r.Header(2, "Columns of "+t.Name)
		r.Table([]string{"#", "Column", "Type", "Nullable"}, cols)
	}
}

// renderDiagnostics writes the key overlap report and merge quality warnings.
func renderDiagnostics(r *output.Renderer, d *diagnostics.Report, verbose bool) {
	if d == nil {
		return
	}

	r.Header(2, "Key Overlap")
	r.KeyValue("Claims providers", d.ClaimsKeys)
	r.KeyValue("Policy providers", d.PolicyKeys)
	r.KeyValue("Matching", d.Matching)
	r.KeyValue("Claims only", listed(d.ClaimsOnly, verbose))
	r.KeyValue("Policies only", listed(d.PoliciesOnly, verbose))
	r.KeyValue("Unmatched claims", d.UnmatchedRows)
	r.KeyValue("Expected rows", d.ExpectedRows)
	r.Println("")

	if verbose {
		r.Header(2, "Providers")
		r.KeyValue("In claims", strings.Join(d.ClaimsProviders, ", "))
		r.KeyValue("In policies", strings.Join(d.PolicyProviders, ", "))
		r.Println("")
	}

	if d.HasFanOut() {
		rows := make([][]string, 0, len(d.FanOutKeys))
		for _, kc := range d.FanOutKeys {
			rows = append(rows, []string{kc.Key, strconv.Itoa(kc.Count)})
		}
		r.Header(2, "Providers With Multiple Policies")
		r.Table([]string{"Provider", "Policies"}, rows)
	}

	if warnings := d.Warnings(); len(warnings) > 0 {
		r.Header(2, "Merge Quality")
		for _, w := range warnings {
			r.Printf("- %s\n", w)
		}
		r.Println("")
	}
}

// listed formats a count with the first few names.
func listed(names []string, verbose bool) string {
	if len(names) == 0 {
		return "0"
	}
	shown := names
	if !verbose && len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	s := fmt.Sprintf("%d (%s", len(names), strings.Join(shown, ", "))
	if len(shown) < len(names) {
		s += fmt.Sprintf(", ... %d more", len(names)-len(shown))
	}
	return s + ")"
}

// renderOutputs writes save confirmations.
func renderOutputs(r *output.Renderer, res *pipeline.Result) {
	if res.Table == "" && len(res.Files) == 0 {
		return
	}
	r.Header(2, "Output")
	if res.Table != "" {
		r.Success(fmt.Sprintf("Created table %s (%d rows, %d columns)", res.Table, res.JoinedRows, len(res.Columns)))
	}
	if len(res.Indexes) > 0 {
		r.Success(fmt.Sprintf("Created %d indexes: %s", len(res.Indexes), strings.Join(res.Indexes, ", ")))
	}
	if len(res.SkippedIndexes) > 0 {
		r.Muted("Skipped indexes: " + strings.Join(res.SkippedIndexes, ", "))
	}
	for _, f := range res.Files {
		r.Success(fmt.Sprintf("Saved dataset: %s (%.1f KB)", filepath.Base(f.Path), f.SizeKB()))
	}
	r.Println("")
}

// renderSummary writes the summary block.
func renderSummary(r *output.Renderer, s *stats.Summary) {
	if s == nil {
		return
	}
	r.Header(2, "Summary")
	r.KeyValue("Rows", s.Rows)
	if s.HasAmount {
		r.KeyValue("Total billing", fmt.Sprintf("%.2f", s.Total))
		r.KeyValue("Average billing", fmt.Sprintf("%.2f", s.Mean))
	}
	r.KeyValue("Providers", s.Providers)
	if s.HasPlanType {
		r.KeyValue("Plan types", s.PlanTypes)
	}
	r.Println("")

	if len(s.TopProviders) > 0 {
		r.Header(2, "Top Providers")
		r.Table([]string{"Provider", "Claims", "Average", "Total"}, groupRows(s.TopProviders, false))
	}
	if len(s.TopPlans) > 0 {
		r.Header(2, "Top Provider Plans")
		r.Table([]string{"Provider", "Plan", "Claims", "Average", "Total"}, groupRows(s.TopPlans, true))
	}
}

func groupRows(groups []stats.Group, withPlan bool) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		row := []string{g.Provider}
		if withPlan {
			row = append(row, g.PlanType)
		}
		row = append(row, strconv.Itoa(g.Claims), fmt.Sprintf("%.2f", g.Mean), fmt.Sprintf("%.2f", g.Total))
		rows = append(rows, row)
	}
	return rows
}
