package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func dbCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db-check",
		Short: "Verify the configured store accepts writes and reads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			if err := a.store.Ping(ctx); err != nil {
				return fmt.Errorf("store ping failed: %w", err)
			}
			fmt.Fprintf(out, "ping       ok (%s, %s)\n", cfg.Repository.Driver, time.Since(start).Round(time.Microsecond))

			probe := &domain.Transaction{
				ID:        "db-check-" + uuid.NewString(),
				AccountID: "db-check",
				Amount:    decimal.NewFromInt(1),
				Currency:  "USD",
				Timestamp: time.Now().UTC().Truncate(time.Second),
				Channel:   "Probe",
			}

			start = time.Now()
			if err := a.store.SaveTransaction(ctx, probe); err != nil && !errors.Is(err, domain.ErrDuplicateTransaction) {
				return fmt.Errorf("probe write failed: %w", err)
			}
			got, err := a.store.GetTransaction(ctx, probe.ID)
			if err != nil {
				return fmt.Errorf("probe read failed: %w", err)
			}
			if !got.Amount.Equal(probe.Amount) || got.AccountID != probe.AccountID {
				return fmt.Errorf("probe mismatch: wrote %s/%s, read %s/%s",
					probe.AccountID, probe.Amount, got.AccountID, got.Amount)
			}
			fmt.Fprintf(out, "round-trip ok (%s)\n", time.Since(start).Round(time.Microsecond))
			fmt.Fprintf(out, "breaker    %s\n", a.guarded.State())
			return nil
		},
	}
}
