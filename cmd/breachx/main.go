package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"breachx/internal/config"
	"breachx/internal/logging"
)

// cli carries the state every subcommand shares once the root pre-run has
// loaded it.
type cli struct {
	cfg     config.Config
	log     *zap.Logger
	backend string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "breachx",
		Short: "BreachX vulnerability report registry",
		Long: `breachx records vulnerability reports at addresses derived from the
reporter and repository, and issues a unit-supply badge token per report.

Configuration comes from the environment (.env is honoured) and the optional
YAML file named by BREACHX_CONFIG.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if c.backend != "" {
				cfg.Backend = c.backend
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("config: %w", err)
				}
			}
			c.cfg = cfg
			c.log, err = logging.New(cfg.LogLevel, cfg.Env)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.backend, "backend", "", "account backend: memory, bolt, sqlite, postgres or redis")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newDeriveCmd(c),
		newReportCmd(c),
		newBadgeCmd(c),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
