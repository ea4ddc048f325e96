package commands

import (
	"fmt"

	"github.com/leapstack-labs/claimjoin/internal/cli/config"
	"github.com/leapstack-labs/claimjoin/internal/pipeline"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigView is the YAML document printed by the config command.
type ConfigView struct {
	ConfigFile  string                     `yaml:"config_file,omitempty"`
	ProjectRoot string                     `yaml:"project_root"`
	Settings    *config.Config             `yaml:"settings"`
	Pipelines   map[string]pipeline.Config `yaml:"pipelines"`
}

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config [pipeline]",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, claimjoin.yaml, CLAIMJOIN_*
environment variables and flags were applied, with every pipeline resolved
against its preset. Passwords are never printed.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completePipelines,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig()
			if err != nil {
				return err
			}
			view, err := NewConfigView(cfg, pipelineArg(args))
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(view); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			return enc.Close()
		},
	}
}

// NewConfigView resolves the named pipeline, or every pipeline when name is empty.
func NewConfigView(cfg *config.Config, name string) (*ConfigView, error) {
	settings := *cfg
	settings.Pipelines = nil

	names := cfg.PipelineNames()
	if name != "" {
		names = []string{name}
	}

	view := &ConfigView{
		ConfigFile:  config.GetConfigFileUsed(),
		ProjectRoot: cfg.ProjectRoot,
		Settings:    &settings,
		Pipelines:   make(map[string]pipeline.Config, len(names)),
	}
	for _, n := range names {
		p, err := cfg.ResolvePipeline(n)
		if err != nil {
			return nil, err
		}
		view.Pipelines[n] = p
	}
	return view, nil
}
