// Package pipeline runs the claims and policy left-join pipeline: load both
// relations, report key overlap, join, project, persist to a table with
// indexes, export to files and summarize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/claimjoin/internal/diagnostics"
	"github.com/leapstack-labs/claimjoin/internal/export"
	"github.com/leapstack-labs/claimjoin/internal/stats"
	"github.com/leapstack-labs/claimjoin/pkg/adapter"
	"github.com/leapstack-labs/claimjoin/pkg/core"
	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// Result describes a finished (or diagnosed) run.
type Result struct {
	RunID    string `json:"run_id,omitempty"`
	Pipeline string `json:"pipeline"`
	Mode     Mode   `json:"mode"`

	ClaimsRows int `json:"claims_rows"`
	PolicyRows int `json:"policy_rows"`

	// Tables describes the loaded inputs. Only Diagnose fills it.
	Tables []*core.TableMetadata `json:"tables,omitempty"`

	// Diagnostics is nil in claims-only mode.
	Diagnostics *diagnostics.Report `json:"diagnostics,omitempty"`

	JoinedRows int      `json:"joined_rows"`
	Table      string   `json:"table,omitempty"`
	Columns    []string `json:"columns,omitempty"`
	Indexes    []string `json:"indexes,omitempty"`

	// SkippedIndexes name configured indexes whose column is not in the output.
	SkippedIndexes []string `json:"skipped_indexes,omitempty"`

	Files []*export.File `json:"files,omitempty"`

	Summary *stats.Summary `json:"summary,omitempty"`

	// ReportErr is set when the summary is partial.
	ReportErr *ReportingError `json:"-"`

	// Output is the persisted relation.
	Output *relation.Relation `json:"-"`
}

// Runner executes pipelines against one connected adapter.
type Runner struct {
	Adapter  adapter.Adapter
	Exporter *export.Exporter

	// Journal records each run when set. Journal failures are logged only.
	Journal core.Store

	Logger *slog.Logger
}

// NewRunner creates a Runner. If logger is nil, a discard logger is used.
func NewRunner(adp adapter.Adapter, exporter *export.Exporter, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{Adapter: adp, Exporter: exporter, Logger: logger}
}

// inputs holds the loaded relations of one run.
type inputs struct {
	claims   *relation.Relation
	policies *relation.Relation
	mode     Mode
}

func (r *Runner) joinSpec(cfg *Config) relation.JoinSpec {
	return relation.JoinSpec{
		LeftKey:  cfg.ClaimsKey,
		RightKey: cfg.PolicyKey,
		Suffix:   cfg.Suffix,
		Key:      relation.KeyFuncFor(cfg.NormalizeKeys),
	}
}

// load reads the claims table and, if configured and present, the policy table.
func (r *Runner) load(ctx context.Context, cfg *Config) (*inputs, error) {
	claims, err := r.Adapter.ReadTable(ctx, cfg.ClaimsTable)
	if err != nil {
		if adapter.IsTableNotFound(err) {
			return nil, &MissingInputError{Table: cfg.ClaimsTable, Err: err}
		}
		return nil, fmt.Errorf("failed to load %s: %w", cfg.ClaimsTable, err)
	}
	r.Logger.Info("loaded claims", slog.String("table", cfg.ClaimsTable), slog.Int("rows", claims.Len()))

	in := &inputs{claims: claims, mode: ModeClaimsOnly}
	if cfg.PolicyTable == "" {
		return in, nil
	}

	policies, err := r.Adapter.ReadTable(ctx, cfg.PolicyTable)
	switch {
	case err == nil:
		r.Logger.Info("loaded policies", slog.String("table", cfg.PolicyTable), slog.Int("rows", policies.Len()))
		in.policies = policies
		in.mode = ModeCombined
	case adapter.IsTableNotFound(err) && !cfg.RequirePolicy:
		r.Logger.Warn("policy table not found, creating claims-only dataset", slog.String("table", cfg.PolicyTable))
	case adapter.IsTableNotFound(err):
		return nil, &MissingInputError{Table: cfg.PolicyTable, Err: err}
	default:
		return nil, fmt.Errorf("failed to load %s: %w", cfg.PolicyTable, err)
	}
	return in, nil
}

// Diagnose loads the inputs and reports key overlap without writing anything.
func (r *Runner) Diagnose(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	in, err := r.load(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{Pipeline: cfg.Name, Mode: in.mode, ClaimsRows: in.claims.Len()}
	tables := []string{cfg.ClaimsTable}
	if in.policies != nil {
		tables = append(tables, cfg.PolicyTable)
	}
	for _, table := range tables {
		meta, err := r.Adapter.GetTableMetadata(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", table, err)
		}
		res.Tables = append(res.Tables, meta)
	}
	if in.policies != nil {
		res.PolicyRows = in.policies.Len()
		if res.Diagnostics, err = diagnostics.Analyze(in.claims, in.policies, r.joinSpec(&cfg)); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Run executes the pipeline. Persistence to the table and to files is
// attempted independently; any persistence failure fails the run after both
// were attempted and no summary is computed. A summary failure is attached to
// the result as ReportErr.
func (r *Runner) Run(ctx context.Context, cfg Config) (res *Result, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res = &Result{Pipeline: cfg.Name}
	run := r.startRun(cfg.Name)
	if run != nil {
		res.RunID = run.ID
	}
	defer func() { r.finishRun(run, res, err) }()

	in, err := r.load(ctx, &cfg)
	if err != nil {
		return res, err
	}
	res.Mode = in.mode
	res.ClaimsRows = in.claims.Len()

	final := in.claims
	if in.policies != nil {
		res.PolicyRows = in.policies.Len()
		spec := r.joinSpec(&cfg)

		if res.Diagnostics, err = diagnostics.Analyze(in.claims, in.policies, spec); err != nil {
			return res, err
		}
		for _, w := range res.Diagnostics.Warnings() {
			r.Logger.Warn(w)
		}

		joined, err := relation.LeftJoin(in.claims, in.policies, spec)
		if err != nil {
			return res, fmt.Errorf("failed to join: %w", err)
		}
		r.Logger.Info("joined", slog.Int("before", in.claims.Len()), slog.Int("after", joined.Len()))

		if final, err = shape(joined, &cfg); err != nil {
			return res, err
		}
	}

	final = final.Rename(cfg.TableName(in.mode))
	res.Output = final
	res.JoinedRows = final.Len()
	res.Columns = final.Columns
	r.Logger.Info("final dataset", slog.Int("rows", final.Len()), slog.Int("columns", final.Width()))

	if errs := r.persist(ctx, &cfg, in.mode, final, res); len(errs) > 0 {
		return res, errors.Join(errs...)
	}

	summary, statErr := stats.Compute(final, stats.Options{
		AmountColumn:   IndexColumns["billing"],
		ProviderColumn: cfg.ClaimsKey,
		PlanColumn:     IndexColumns["plan"],
		TopN:           cfg.TopN,
		GroupByPlan:    cfg.GroupByPlan,
	})
	res.Summary = summary
	if statErr != nil {
		res.ReportErr = &ReportingError{Err: statErr}
		r.Logger.Warn("summary is partial", slog.String("error", statErr.Error()))
	}
	return res, nil
}

// shape projects the joined relation and adds the policy_id cross-reference.
func shape(joined *relation.Relation, cfg *Config) (*relation.Relation, error) {
	out := joined
	if len(cfg.Columns) > 0 {
		out = relation.Project(joined, cfg.Columns)
	}
	if cfg.PolicyIDFrom != "" && out.HasColumn(cfg.PolicyIDFrom) && !out.HasColumn(PolicyIDColumn) {
		var err error
		if out, err = out.WithColumnFrom(PolicyIDColumn, cfg.PolicyIDFrom); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// persist writes the table, its indexes and every export file. Indexes are
// skipped when the table write failed.
func (r *Runner) persist(ctx context.Context, cfg *Config, mode Mode, final *relation.Relation, res *Result) []error {
	var errs []error
	table := cfg.TableName(mode)

	if err := r.Adapter.WriteTable(ctx, table, final); err != nil {
		r.Logger.Error("table write failed", slog.String("table", table), slog.String("error", err.Error()))
		errs = append(errs, &PersistenceError{Sink: SinkTable, Target: table, Err: err})
	} else {
		res.Table = table
		r.Logger.Info("created table", slog.String("table", table))
		errs = append(errs, r.createIndexes(ctx, cfg, mode, table, final, res)...)
	}

	for _, format := range cfg.ExportFormats() {
		f, err := r.Exporter.Export(final, cfg.Prefix(mode), format)
		if err != nil {
			r.Logger.Error("export failed", slog.String("format", string(format)), slog.String("error", err.Error()))
			errs = append(errs, &PersistenceError{Sink: SinkFile, Target: cfg.Prefix(mode), Err: err})
			continue
		}
		r.Logger.Info("saved dataset", slog.String("path", f.Path), slog.Float64("size_kb", f.SizeKB()))
		res.Files = append(res.Files, f)
	}
	return errs
}

func (r *Runner) createIndexes(ctx context.Context, cfg *Config, mode Mode, table string, final *relation.Relation, res *Result) []error {
	var errs []error
	tag := cfg.Tag(mode)
	for _, name := range cfg.Indexes {
		spec := adapter.IndexSpec{
			Name:   fmt.Sprintf("idx_%s_%s", tag, name),
			Table:  table,
			Column: IndexColumns[name],
		}
		if !final.HasColumn(spec.Column) {
			res.SkippedIndexes = append(res.SkippedIndexes, spec.Name)
			r.Logger.Debug("skipping index, column not in output", slog.String("index", spec.Name), slog.String("column", spec.Column))
			continue
		}
		if err := r.Adapter.CreateIndex(ctx, spec); err != nil {
			errs = append(errs, &PersistenceError{Sink: SinkIndex, Target: spec.Name, Err: err})
			continue
		}
		res.Indexes = append(res.Indexes, spec.Name)
	}
	return errs
}

func (r *Runner) startRun(pipeline string) *core.Run {
	if r.Journal == nil {
		return nil
	}
	run, err := r.Journal.CreateRun(pipeline)
	if err != nil {
		r.Logger.Warn("failed to record run start", slog.String("error", err.Error()))
		return nil
	}
	return run
}

func (r *Runner) finishRun(run *core.Run, res *Result, runErr error) {
	if run == nil {
		return
	}
	outcome := core.RunOutcome{
		Status:      core.RunStatusCompleted,
		Mode:        string(res.Mode),
		RowCount:    int64(res.JoinedRows),
		OutputTable: res.Table,
	}
	if len(res.Files) > 0 {
		outcome.OutputFile = res.Files[0].Path
	}
	if runErr != nil {
		outcome.Status = core.RunStatusFailed
		outcome.Error = runErr.Error()
	}
	if err := r.Journal.CompleteRun(run.ID, outcome); err != nil {
		r.Logger.Warn("failed to record run outcome", slog.String("run", run.ID), slog.String("error", err.Error()))
	}
}
