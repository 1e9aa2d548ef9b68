// Package worker runs a finite batch of transactions through detection.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Analyzer is the part of detection.Detector the runner needs.
type Analyzer interface {
	AnalyzeAndPersist(ctx context.Context, tx *domain.Transaction) (*domain.FraudAlert, error)
}

// Runner processes a batch with a fixed number of goroutines. Transactions of
// one account always land on the same goroutine and are analysed in input
// order; different accounts proceed concurrently.
type Runner struct {
	analyzer Analyzer
	workers  int
	onAlert  func(*domain.FraudAlert)
}

// Option configures a Runner.
type Option func(*Runner)

// WithAlertHandler calls fn for every alert raised. Calls are serialized.
func WithAlertHandler(fn func(*domain.FraudAlert)) Option {
	return func(r *Runner) {
		r.onAlert = fn
	}
}

// NewRunner creates a runner. A worker count below one runs the batch sequentially.
func NewRunner(analyzer Analyzer, workers int, opts ...Option) *Runner {
	if workers < 1 {
		workers = 1
	}
	r := &Runner{analyzer: analyzer, workers: workers}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Workers returns the number of goroutines used per batch.
func (r *Runner) Workers() int {
	return r.workers
}

// Summary describes a processed batch.
type Summary struct {
	Processed int                      `json:"processed"`
	Alerts    int                      `json:"alerts"`
	ByLevel   map[domain.RiskLevel]int `json:"byLevel"`
	Duration  time.Duration            `json:"duration"`
}

// Run analyses every transaction in txs. The first failure cancels the rest of
// the batch and is returned together with the summary of the work already done.
func (r *Runner) Run(ctx context.Context, txs []*domain.Transaction) (Summary, error) {
	start := time.Now()
	summary := Summary{ByLevel: make(map[domain.RiskLevel]int)}

	shards := make([][]*domain.Transaction, r.workers)
	for i, tx := range txs {
		if tx == nil {
			return summary, fmt.Errorf("%w: batch entry %d is nil", domain.ErrInvalidInput, i)
		}
		n := shardFor(tx.AccountID, r.workers)
		shards[n] = append(shards[n], tx)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		g.Go(func() error {
			for _, tx := range shard {
				alert, err := r.analyzer.AnalyzeAndPersist(gctx, tx)
				if err != nil {
					return err
				}

				mu.Lock()
				summary.Processed++
				if alert != nil {
					summary.Alerts++
					summary.ByLevel[alert.RiskLevel]++
					if r.onAlert != nil {
						r.onAlert(alert)
					}
				}
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	summary.Duration = time.Since(start)

	if err != nil {
		slog.Error("batch aborted",
			"processed", summary.Processed,
			"total", len(txs),
			"error", err,
		)
		return summary, err
	}

	slog.Info("batch complete",
		"processed", summary.Processed,
		"alerts", summary.Alerts,
		"workers", r.workers,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

func shardFor(accountID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	return int(h.Sum32() % uint32(n))
}
