package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/claimjoin/internal/cli/output"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Formats       []string
	NormalizeKeys bool
	NoJournal     bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [pipeline]",
		Short: "Join claims with policies and persist the result",
		Long: `Load the claims table and, when present, the policy table; left join
them on the provider key; write the result to a table with indexes and export
it to timestamped files in the output directory.

Without an argument the configured default pipeline runs ("combined" unless
pipeline is set in claimjoin.yaml). When the policy table is missing, the
combined pipeline falls back to a claims-only dataset.`,
		Example: `  # Run the default pipeline
  claimjoin run

  # Keep every column and require the policy table
  claimjoin run merged

  # Also export Parquet
  claimjoin run --format csv --format parquet

  # Machine-readable result
  claimjoin run -o json`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completePipelines,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, pipelineArg(args))
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Formats, "format", "f", nil, "Export formats (csv, parquet); overrides the pipeline setting")
	cmd.Flags().BoolVar(&opts.NormalizeKeys, "normalize-keys", false, "Match provider keys case-insensitively after trimming whitespace")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "Do not record the run in the state database")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions, name string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	pcfg, err := cmdCtx.Cfg.ResolvePipeline(name)
	if err != nil {
		return err
	}
	if len(opts.Formats) > 0 {
		pcfg.Formats = opts.Formats
	}
	if opts.NormalizeKeys {
		pcfg.NormalizeKeys = true
	}

	ctx := cmd.Context()
	adp, err := cmdCtx.OpenAdapter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = adp.Close() }()

	runner := cmdCtx.NewRunner(adp)
	if !opts.NoJournal {
		journal, err := cmdCtx.OpenJournal()
		if err != nil {
			cmdCtx.Logger.Warn("run journal unavailable", slog.String("error", err.Error()))
		} else {
			defer func() { _ = journal.Close() }()
			runner.Journal = journal
		}
	}

	startTime := time.Now()
	res, runErr := runner.Run(ctx, pcfg)

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(newRunOutput(res, runErr)); err != nil {
			return err
		}
		return runErr
	}

	// Mode is set once the inputs loaded.
	if res != nil && res.Mode != "" {
		renderInputs(r, "Claims Pipeline", res)
		renderDiagnostics(r, res.Diagnostics, cmdCtx.Cfg.Verbose)
		renderOutputs(r, res)
		renderSummary(r, res.Summary)
		if res.ReportErr != nil {
			r.Warning(res.ReportErr.Error())
		}
	}
	if runErr != nil {
		return runErr
	}

	if res.RunID != "" {
		r.Muted(fmt.Sprintf("Run %s completed in %s", res.RunID, time.Since(startTime).Round(time.Millisecond)))
	} else {
		r.Muted(fmt.Sprintf("Completed in %s", time.Since(startTime).Round(time.Millisecond)))
	}
	return nil
}
