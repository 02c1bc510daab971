package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"breachx/internal/app"
	"breachx/internal/config"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the SQL backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch c.cfg.Backend {
			case config.BackendSQLite, config.BackendPostgres:
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "backend %s has no schema\n", c.cfg.Backend)
				return nil
			}
			backend, err := app.OpenBackend(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date\n", c.cfg.Backend)
			return backend.Close()
		},
	}
}
