package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/spf13/cobra"
)

func alertsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "alerts <account-id>",
		Short: "List the most recent alerts of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("%w: --limit must not be negative", domain.ErrInvalidInput)
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			alerts, err := a.store.AlertsByAccount(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no alerts for account %s\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tLEVEL\tSCORE\tTRANSACTION\tREASON")
			for _, alert := range alerts {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					alert.CreatedAt.Format(report.TimeLayout), alert.RiskLevel, alert.Score,
					alert.TransactionID, alert.Reason)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of alerts (0 for the default of 50)")
	return cmd
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <account-id>",
		Short: "Summarise the alerts of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			alerts, err := a.store.AlertsByAccount(cmd.Context(), args[0], report.Limit)
			if err != nil {
				return err
			}
			s := report.Summarize(args[0], alerts)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Account: %s\n", s.AccountID)
			fmt.Fprintf(out, "Alerts:  %d\n", s.Total)
			if s.Latest != nil {
				fmt.Fprintf(out, "Latest:  %s\n", s.Latest.Format(report.TimeLayout))
			}
			for _, level := range domain.RiskLevels {
				fmt.Fprintf(out, "  %-6s %d\n", level, s.ByLevel[level])
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			if len(s.PerMonth) > 0 {
				fmt.Fprintln(tw, "\nMONTH\tALERTS")
				for _, c := range s.PerMonth {
					fmt.Fprintf(tw, "%s\t%d\n", c.Key, c.Count)
				}
			}
			if len(s.TopReasons) > 0 {
				fmt.Fprintln(tw, "\nREASON\tALERTS")
				for _, c := range s.TopReasons {
					fmt.Fprintf(tw, "%s\t%d\n", c.Key, c.Count)
				}
			}
			return tw.Flush()
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export <account-id>",
		Short: "Export the alerts of an account as CSV or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if format != "csv" && format != "json" {
				return fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidInput, format)
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			alerts, err := a.store.AlertsByAccount(cmd.Context(), args[0], report.Limit)
			if err != nil {
				return err
			}

			if out == "" {
				return report.Export(cmd.OutOrStdout(), format, alerts)
			}

			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}()

			if err := report.Export(f, format, alerts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d alerts to %s\n", len(alerts), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv, json)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}
