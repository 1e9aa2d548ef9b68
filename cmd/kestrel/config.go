package main

import (
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and active rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ruleSet, err := rules.Build(cfg.RulesConfig())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}

			fmt.Fprintf(out, "\nActive rules (%d):\n", len(ruleSet))
			for i, r := range ruleSet {
				fmt.Fprintf(out, "  %d. %s\n", i+1, r.Name())
			}
			return nil
		},
	}
}
