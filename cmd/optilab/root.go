package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/optilab/internal/config"
	"github.com/copyleftdev/optilab/internal/logging"
)

// app carries the state shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg, logger: zap.NewNop()}
	logCfg := cfg.LoggingConfig()

	root := &cobra.Command{
		Use:   "optilab",
		Short: "Benchmark surrogate-assisted evolution strategies",
		Long: `optilab runs CMA-ES and its metamodel-assisted variants on benchmark
functions, records every evaluation and compares methods statistically.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewLogger(logCfg)
			if err != nil {
				return err
			}
			a.logger = logger.With(zap.String("environment", cfg.Environment))
			zap.ReplaceGlobals(a.logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&logCfg.Level, "log-level", logCfg.Level, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logCfg.Format, "log-format", logCfg.Format, "Log format (json, console)")
	root.PersistentFlags().StringVar(&logCfg.Output, "log-output", logCfg.Output, "Log output (stdout, stderr, or file path)")

	root.AddCommand(newRunCmd(a), newStatsCmd(a), newVersionCmd())
	return root
}
