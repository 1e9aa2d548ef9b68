package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/worker"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		input   string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyse a CSV batch of transactions",
		Long: `Reads transactions from a CSV file, scores each one against the rule set
and recent account history, stores it and prints every alert raised.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return fmt.Errorf("%w: --input is required", domain.ErrInvalidInput)
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Worker.Count
			}

			txs, err := ingest.ReadFile(input)
			if err != nil {
				return err
			}
			slog.Info("batch loaded", "input", input, "transactions", len(txs))

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			runner := worker.NewRunner(a.detector, workers, worker.WithAlertHandler(func(alert *domain.FraudAlert) {
				printAlert(out, alert)
			}))

			summary, err := runner.Run(cmd.Context(), txs)
			printSummary(out, summary)
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV file of transactions")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of concurrent workers (default: worker.count)")
	return cmd
}

func printAlert(w io.Writer, alert *domain.FraudAlert) {
	fmt.Fprintf(w, "ALERT %-6s score=%-4d tx=%s account=%s reason=%s\n",
		alert.RiskLevel, alert.Score, alert.TransactionID, alert.AccountID, alert.Reason)
}

func printSummary(w io.Writer, s worker.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Processed: %d transactions in %s\n", s.Processed, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Alerts:    %d\n", s.Alerts)
	for _, level := range domain.RiskLevels {
		fmt.Fprintf(w, "  %-6s %d\n", level, s.ByLevel[level])
	}
}
