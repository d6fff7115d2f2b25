// Package cmd defines the CLI commands for the jobhound executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobhound/internal/config"
	"jobhound/internal/logging"
)

var (
	cfgFile string

	// Loaded by the root PersistentPreRunE; subcommands read these.
	rootCfg    config.Config
	rootLogger *zap.Logger
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobhound",
		Short: "A resilient crawler for paginated job-listing sites.",
		Long: `jobhound crawls a paginated listing site, discovers detail pages, and
extracts structured job records while rotating identities and backing off
from anti-bot blocks. Records fan out to the configured sinks; a small ops
API serves live run progress and Prometheus metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rootCfg = cfg
			rootLogger = logger
			return nil
		},

		PersistentPostRun: func(*cobra.Command, []string) {
			if rootLogger != nil {
				// Sync can fail on stderr; nothing useful to do about it.
				_ = rootLogger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus JOBHOUND_* env)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point for the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("command failed", zap.Error(err))
			_ = rootLogger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
