package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/claimjoin/internal/cli/output"
	"github.com/leapstack-labs/claimjoin/pkg/core"
	"github.com/spf13/cobra"
)

// defaultRunsLimit is the number of runs listed when --limit is not set.
const defaultRunsLimit = 20

// NewRunsCommand creates the runs command and its subcommands.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the run history",
		Long: `List recorded pipeline runs from the state database, newest first.

The history is an audit log: runs are never resumed from it.`,
		Example: `  # Last 20 runs
  claimjoin runs

  # Details of one run
  claimjoin runs show 3f2a...

  # Latest run of the merged pipeline
  claimjoin runs latest merged`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournal(cmd, func(cmdCtx *CommandContext, store core.Store) error {
				runs, err := store.ListRuns(limit)
				if err != nil {
					return err
				}
				return renderRuns(cmdCtx.Renderer, runs)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultRunsLimit, "Maximum number of runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, func(cmdCtx *CommandContext, store core.Store) error {
				run, err := store.GetRun(args[0])
				if err != nil {
					return err
				}
				return renderRunDetail(cmdCtx.Renderer, run)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:               "latest [pipeline]",
		Short:             "Show the most recent run",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completePipelines,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, func(cmdCtx *CommandContext, store core.Store) error {
				name := pipelineArg(args)
				if name == "" {
					name = cmdCtx.Cfg.Pipeline
				}
				run, err := store.GetLatestRun(name)
				if err != nil {
					return err
				}
				if run == nil {
					cmdCtx.Renderer.Muted("No runs recorded for " + name)
					return nil
				}
				return renderRunDetail(cmdCtx.Renderer, run)
			})
		},
	})

	return cmd
}

// withJournal opens the state database around fn.
func withJournal(cmd *cobra.Command, fn func(*CommandContext, core.Store) error) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, err := cmdCtx.OpenJournal()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(cmdCtx, store)
}

func renderRuns(r *output.Renderer, runs []*core.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*core.Run{}
		}
		return r.JSON(runs)
	}

	r.Header(1, "Run History")
	if len(runs) == 0 {
		r.Muted("No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.Pipeline,
			run.Mode,
			string(run.Status),
			strconv.FormatInt(run.RowCount, 10),
			run.StartedAt.Local().Format(time.DateTime),
			run.OutputTable,
		})
	}
	r.Table([]string{"ID", "Pipeline", "Mode", "Status", "Rows", "Started", "Table"}, rows)
	return nil
}

func renderRunDetail(r *output.Renderer, run *core.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}

	r.Header(1, "Run "+run.ID)
	r.KeyValue("Pipeline", run.Pipeline)
	r.KeyValue("Status", run.Status)
	if run.Mode != "" {
		r.KeyValue("Mode", run.Mode)
	}
	r.KeyValue("Rows", run.RowCount)
	r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil {
		r.KeyValue("Duration", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.OutputTable != "" {
		r.KeyValue("Table", run.OutputTable)
	}
	if run.OutputFile != "" {
		r.KeyValue("File", run.OutputFile)
	}
	if run.Error != "" {
		r.Error(fmt.Sprintf("run failed: %s", run.Error))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
