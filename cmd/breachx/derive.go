package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"breachx/internal/address"
	"breachx/internal/domain"
)

type derivedAddresses struct {
	Program  string `json:"program"`
	Report   string `json:"report"`
	Mint     string `json:"mint"`
	Holding  string `json:"holding"`
	Metadata string `json:"metadata"`
}

func newDeriveCmd(c *cli) *cobra.Command {
	var reporter, repository string
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the addresses a report and its badge occupy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := domain.ParseAddress(reporter)
			if err != nil {
				return fmt.Errorf("--reporter: %w", err)
			}
			program, err := domain.ParseAddress(c.cfg.ProgramID)
			if err != nil {
				return err
			}
			d := address.NewDeriver(program)
			report, err := d.Report(owner, repository)
			if err != nil {
				return err
			}
			badge, err := d.Badge(owner, repository)
			if err != nil {
				return err
			}
			return printJSON(cmd, derivedAddresses{
				Program:  program.String(),
				Report:   report.String(),
				Mint:     badge.Mint.String(),
				Holding:  badge.Holding.String(),
				Metadata: badge.Metadata.String(),
			})
		},
	}
	cmd.Flags().StringVar(&reporter, "reporter", "", "reporter address (base58)")
	cmd.Flags().StringVar(&repository, "repository", "", "repository identifier")
	_ = cmd.MarkFlagRequired("reporter")
	_ = cmd.MarkFlagRequired("repository")
	return cmd
}
