package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/montauban/internal/config"
	"github.com/cory-johannsen/montauban/internal/observability"
)

// app carries what the persistent pre-run prepared for the subcommands.
type app struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "montauban",
		Short:         "Montauban Multivers narrative engine tooling",
		Long:          "Validate content, run Council sessions and simulate character playthroughs.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "configs/dev.yaml", "path to configuration file")

	root.AddCommand(
		newValidateCmd(a),
		newCouncilCmd(a),
		newSimulateCmd(a),
	)
	return root
}

// engine wires the content and services for one command run.
func (a *app) engine(ctx context.Context) (*Engine, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return initializeEngine(ctx, a.cfg, a.logger)
}
