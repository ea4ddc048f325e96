package commands

import (
	"github.com/leapstack-labs/claimjoin/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand() *cobra.Command {
	var normalizeKeys bool

	cmd := &cobra.Command{
		Use:   "diagnose [pipeline]",
		Short: "Report provider key overlap without writing anything",
		Long: `Load the pipeline inputs and report how the provider keys of the claims
and policy tables overlap: matching keys, unmatched claims, policy providers no
claim references, and providers with more than one policy row (which multiply
joined rows). Nothing is written to the database or the output directory.`,
		Example: `  # Diagnose the default pipeline
  claimjoin diagnose

  # Show every provider list
  claimjoin diagnose -v`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completePipelines,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(cmd, pipelineArg(args), normalizeKeys)
		},
	}

	cmd.Flags().BoolVar(&normalizeKeys, "normalize-keys", false, "Match provider keys case-insensitively after trimming whitespace")

	return cmd
}

func runDiagnose(cmd *cobra.Command, name string, normalizeKeys bool) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	pcfg, err := cmdCtx.Cfg.ResolvePipeline(name)
	if err != nil {
		return err
	}
	if normalizeKeys {
		pcfg.NormalizeKeys = true
	}

	ctx := cmd.Context()
	adp, err := cmdCtx.OpenAdapter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = adp.Close() }()

	res, err := cmdCtx.NewRunner(adp).Diagnose(ctx, pcfg)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(newRunOutput(res, nil))
	}

	renderInputs(r, "Claims Diagnostics", res)
	renderTables(r, res.Tables, cmdCtx.Cfg.Verbose)
	if res.Diagnostics == nil {
		r.Warning("policy table not found; nothing to compare")
		return nil
	}
	renderDiagnostics(r, res.Diagnostics, cmdCtx.Cfg.Verbose)
	return nil
}
