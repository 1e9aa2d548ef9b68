// Benchmark tool for the Kestrel detection pipeline.
//
// Usage:
//
//	go run ./cmd/kestrel-bench -tx 20000 -accounts 500 -workers 8
//
// This tool:
//  1. Generates a labelled synthetic batch, with a share of transactions
//     shaped like fraud (large, risky location or merchant, night time, bursts)
//  2. Runs the batch through the worker pool against a throwaway SQLite store
//  3. Compares raised alerts with the labels and prints precision, recall,
//     tier distribution and throughput
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/detection"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/velocity"
	"github.com/opensource-finance/kestrel/internal/worker"
)

func main() {
	total := flag.Int("tx", 10000, "Number of transactions to generate")
	accounts := flag.Int("accounts", 200, "Number of distinct accounts")
	fraudRate := flag.Float64("fraud-rate", 0.05, "Share of transactions shaped like fraud (0.0-1.0)")
	workers := flag.Int("workers", 8, "Number of concurrent workers")
	seed := flag.Uint64("seed", 42, "Random seed")
	dbPath := flag.String("db", "", "SQLite file (default: temporary)")
	logLevel := flag.String("log-level", "error", "Log level")
	flag.Parse()

	if *total < 1 || *accounts < 1 || *fraudRate < 0 || *fraudRate > 1 {
		fmt.Println("Usage: kestrel-bench [-tx N] [-accounts N] [-fraud-rate 0.05] [-workers N]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := config.SetupLogging(domain.LoggingConfig{Level: *logLevel, Format: "text"}, os.Stderr); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *total, *accounts, *fraudRate, *workers, *seed, *dbPath); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, total, accounts int, fraudRate float64, workers int, seed uint64, dbPath string) error {
	if dbPath == "" {
		dir, err := os.MkdirTemp("", "kestrel-bench-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "bench.db")
	}

	cfg := domain.DefaultConfig()
	cfg.Repository.SQLitePath = dbPath
	cfg.RiskyLocations = riskyLocations
	cfg.RiskyMerchants = riskyMerchants

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║              KESTREL BENCHMARK - Synthetic Batch              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nTransactions: %d\n", total)
	fmt.Printf("Accounts:     %d\n", accounts)
	fmt.Printf("Fraud Rate:   %.2f\n", fraudRate)
	fmt.Printf("Workers:      %d\n", workers)
	fmt.Printf("Store:        %s\n", dbPath)
	fmt.Println()

	sqlRepo, err := repository.New(cfg.Repository)
	if err != nil {
		return err
	}
	store := repository.NewGuarded(sqlRepo, cfg.Storage)
	defer store.Close()

	ruleSet, err := rules.Build(cfg.RulesConfig())
	if err != nil {
		return err
	}
	analyzer := velocity.NewAnalyzer(store, velocity.SettingsFrom(cfg.Detection))
	detector := detection.New(ruleSet, analyzer, detection.ThresholdsFrom(cfg.Detection), store, store)

	batch := generate(seed, total, accounts, fraudRate, time.Now().UTC())
	fmt.Printf("✓ Generated %d transactions (%d labelled fraud)\n", len(batch.txs), len(batch.fraud))

	var (
		mu      sync.Mutex
		flagged = make(map[string]bool, len(batch.fraud))
	)
	runner := worker.NewRunner(detector, workers, worker.WithAlertHandler(func(alert *domain.FraudAlert) {
		mu.Lock()
		flagged[alert.TransactionID] = true
		mu.Unlock()
	}))

	fmt.Printf("\nRunning batch with %d workers...\n", runner.Workers())
	summary, err := runner.Run(ctx, batch.txs)
	if err != nil {
		slog.Error("batch failed", "error", err)
		return err
	}

	printResults(score(batch, flagged), summary)
	return nil
}

func printResults(m Metrics, s worker.Summary) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 RISK TIERS\n")
	for _, level := range domain.RiskLevels {
		fmt.Printf("   %-7s %d\n", level, s.ByLevel[level])
	}

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   ALERT     NO ALERT")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f\n", m.Precision())
	fmt.Printf("   Recall:     %.4f\n", m.Recall())
	fmt.Printf("   F1-Score:   %.4f\n", m.F1())

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", s.Duration.Round(time.Millisecond))
	if s.Processed > 0 && s.Duration > 0 {
		fmt.Printf("   Throughput:       %.2f tx/sec\n", float64(s.Processed)/s.Duration.Seconds())
	}
	fmt.Println()
}
