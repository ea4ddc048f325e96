package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/claimjoin/internal/cli/config"
	"github.com/leapstack-labs/claimjoin/internal/cli/output"
	"github.com/leapstack-labs/claimjoin/internal/export"
	"github.com/leapstack-labs/claimjoin/internal/pipeline"
	"github.com/leapstack-labs/claimjoin/internal/state"
	"github.com/leapstack-labs/claimjoin/pkg/adapter"
	"github.com/spf13/cobra"
)

// ErrDatabaseNotFound reports a missing file-based database.
var ErrDatabaseNotFound = errors.New("database not found")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}, nil
}

// getConfig returns the current configuration, loading defaults when the
// root command did not run.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// OpenAdapter connects to the configured target. File-based targets must
// already exist.
func (c *CommandContext) OpenAdapter(ctx context.Context) (adapter.Adapter, error) {
	target := c.Cfg.Target
	if target.IsFileBased() {
		if _, err := os.Stat(target.Database); err != nil {
			return nil, fmt.Errorf("%w: %s\nHint: Check target.database in claimjoin.yaml or pass --database", ErrDatabaseNotFound, target.Database)
		}
	}

	adp, err := adapter.NewAdapter(target.AdapterConfig(), c.Logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, target.AdapterConfig()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s target: %w", target.Type, err)
	}
	return adp, nil
}

// OpenJournal opens the run journal, creating its directory and schema.
func (c *CommandContext) OpenJournal() (*state.SQLiteStore, error) {
	stateDir := filepath.Dir(c.Cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// NewRunner builds a pipeline runner writing exports to the output directory.
func (c *CommandContext) NewRunner(adp adapter.Adapter) *pipeline.Runner {
	return pipeline.NewRunner(adp, &export.Exporter{Dir: c.Cfg.OutputDir}, c.Logger)
}

// pipelineArg returns the optional pipeline name argument.
func pipelineArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// completePipelines offers pipeline names for shell completion.
func completePipelines(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return pipeline.PresetNames(), cobra.ShellCompDirectiveNoFileComp
	}
	return cfg.PipelineNames(), cobra.ShellCompDirectiveNoFileComp
}
