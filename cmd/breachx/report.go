package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	httpadapter "breachx/internal/adapters/http"
	"breachx/internal/app"
	"breachx/internal/domain"
	"breachx/internal/ports"
)

func newReportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Store and read vulnerability reports",
	}
	cmd.AddCommand(newReportStoreCmd(c), newReportGetCmd(c), newReportListCmd(c))
	return cmd
}

func newReportStoreCmd(c *cli) *cobra.Command {
	var reporter, repository, location string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Record a report for a repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := domain.ParseAddress(reporter)
			if err != nil {
				return fmt.Errorf("--reporter: %w", err)
			}
			return c.withRegistry(cmd, func(reg ports.Registry) error {
				r, err := reg.StoreReport(cmd.Context(), owner, repository, location)
				if err != nil {
					return err
				}
				return printJSON(cmd, httpadapter.ToReport(r))
			})
		},
	}
	cmd.Flags().StringVar(&reporter, "reporter", "", "reporter address (base58)")
	cmd.Flags().StringVar(&repository, "repository", "", "repository identifier")
	cmd.Flags().StringVar(&location, "location", "", "where the report is published")
	_ = cmd.MarkFlagRequired("reporter")
	_ = cmd.MarkFlagRequired("repository")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func newReportGetCmd(c *cli) *cobra.Command {
	var reporter, repository, at string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read a report by reporter and repository, or by address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRegistry(cmd, func(reg ports.Registry) error {
				var (
					r     domain.Report
					found bool
				)
				switch {
				case at != "":
					addr, err := domain.ParseAddress(at)
					if err != nil {
						return fmt.Errorf("--address: %w", err)
					}
					if r, found, err = reg.GetReportAt(cmd.Context(), addr); err != nil {
						return err
					}
				case reporter != "" && repository != "":
					owner, err := domain.ParseAddress(reporter)
					if err != nil {
						return fmt.Errorf("--reporter: %w", err)
					}
					if r, found, err = reg.GetReport(cmd.Context(), owner, repository); err != nil {
						return err
					}
				default:
					return errors.New("either --address or both --reporter and --repository are required")
				}
				if !found {
					return domain.ErrNotFound
				}
				return printJSON(cmd, httpadapter.ToReport(r))
			})
		},
	}
	cmd.Flags().StringVar(&reporter, "reporter", "", "reporter address (base58)")
	cmd.Flags().StringVar(&repository, "repository", "", "repository identifier")
	cmd.Flags().StringVar(&at, "address", "", "report address (base58)")
	cmd.MarkFlagsMutuallyExclusive("address", "reporter")
	return cmd
}

func newReportListCmd(c *cli) *cobra.Command {
	var reporter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every report of a reporter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := domain.ParseAddress(reporter)
			if err != nil {
				return fmt.Errorf("--reporter: %w", err)
			}
			return c.withRegistry(cmd, func(reg ports.Registry) error {
				reports, err := reg.ListReports(cmd.Context(), owner)
				if err != nil {
					return err
				}
				out := httpadapter.ReportList{Reports: make([]httpadapter.Report, 0, len(reports))}
				for _, r := range reports {
					out.Reports = append(out.Reports, httpadapter.ToReport(r))
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&reporter, "reporter", "", "reporter address (base58)")
	_ = cmd.MarkFlagRequired("reporter")
	return cmd
}

func newBadgeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Issue badge tokens for reports",
	}
	cmd.AddCommand(newBadgeIssueCmd(c))
	return cmd
}

func newBadgeIssueCmd(c *cli) *cobra.Command {
	var (
		reporter, repository, location string
		spec                           ports.BadgeSpec
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue the badge for a report",
		Long: `Issues the badge for an existing report. With --location the report is
stored first, and both happen in one unit of work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := domain.ParseAddress(reporter)
			if err != nil {
				return fmt.Errorf("--reporter: %w", err)
			}
			return c.withRegistry(cmd, func(reg ports.Registry) error {
				var (
					r domain.Report
					b domain.Badge
				)
				if location != "" {
					r, b, err = reg.StoreReportAndIssueBadge(cmd.Context(), owner, repository, location, spec)
				} else {
					r, b, err = reg.IssueBadge(cmd.Context(), owner, repository, spec)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, httpadapter.BadgedReport{Report: httpadapter.ToReport(r), Badge: httpadapter.ToBadge(b)})
			})
		},
	}
	cmd.Flags().StringVar(&reporter, "reporter", "", "reporter address (base58)")
	cmd.Flags().StringVar(&repository, "repository", "", "repository identifier")
	cmd.Flags().StringVar(&location, "location", "", "store the report at this location first")
	cmd.Flags().StringVar(&spec.Title, "title", "", "badge title (default derived from the repository)")
	cmd.Flags().StringVar(&spec.Symbol, "symbol", "", "badge symbol")
	cmd.Flags().StringVar(&spec.ContentURI, "uri", "", "badge document URI")
	_ = cmd.MarkFlagRequired("reporter")
	_ = cmd.MarkFlagRequired("repository")
	return cmd
}

func (c *cli) withRegistry(cmd *cobra.Command, fn func(ports.Registry) error) error {
	reg, err := app.Open(cmd.Context(), c.cfg, c.log, app.Telemetry{})
	if err != nil {
		return err
	}
	defer reg.Close()
	return fn(reg)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
