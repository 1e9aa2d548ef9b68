// Package velocity provides the history-based checks: transaction velocity
// and duplicate detection.
package velocity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// Check names used in rule results.
const (
	CheckVelocity  = "Velocity"
	CheckDuplicate = "Duplicate"
)

// DuplicateReason is reported when a recent transaction repeats amount and merchant.
const DuplicateReason = "Duplicate: same amount+merchant in recent window"

// HistoryReader supplies recent transactions for an account.
type HistoryReader interface {
	RecentTransactions(ctx context.Context, accountID string, since time.Time) ([]*domain.Transaction, error)
}

// Counter counts recent transactions without loading them.
type Counter interface {
	CountTransactions(ctx context.Context, accountID string, since time.Time) (int64, error)
}

// Settings configures the analyzer.
type Settings struct {
	Window          time.Duration
	Limit           int
	VelocityWeight  int
	DuplicateWeight int
}

// SettingsFrom converts the detection configuration.
func SettingsFrom(cfg domain.DetectionConfig) Settings {
	return Settings{
		Window:          time.Duration(cfg.VelocityWindowSeconds) * time.Second,
		Limit:           cfg.VelocityLimit,
		VelocityWeight:  cfg.VelocityWeight,
		DuplicateWeight: cfg.DuplicateWeight,
	}
}

// Analyzer runs the velocity and duplicate checks against one history lookup.
type Analyzer struct {
	history  HistoryReader
	settings Settings
}

// NewAnalyzer creates a new velocity analyzer.
func NewAnalyzer(history HistoryReader, settings Settings) *Analyzer {
	return &Analyzer{
		history:  history,
		settings: settings,
	}
}

// Settings returns the analyzer configuration.
func (a *Analyzer) Settings() Settings {
	return a.settings
}

// Analyze looks up the account's transactions since now minus the window and
// applies both checks to that single result. A lookup failure is returned as is.
func (a *Analyzer) Analyze(ctx context.Context, tx *domain.Transaction, now time.Time) (rules.Fold, error) {
	var f rules.Fold
	if tx == nil {
		return f, fmt.Errorf("%w: transaction is required", domain.ErrInvalidInput)
	}

	recent, err := a.history.RecentTransactions(ctx, tx.AccountID, now.Add(-a.settings.Window))
	if err != nil {
		return f, fmt.Errorf("failed to load recent transactions: %w", err)
	}

	if len(recent) >= a.settings.Limit {
		reason := fmt.Sprintf("Velocity: %d txns within last %ds", len(recent), int64(a.settings.Window/time.Second))
		add(&f, CheckVelocity, a.settings.VelocityWeight, reason)
	}

	if isDuplicate(tx, recent) {
		add(&f, CheckDuplicate, a.settings.DuplicateWeight, DuplicateReason)
	}

	return f, nil
}

// add records a matched check. The reason is kept verbatim, without the
// "<name>:" prefix rule reasons carry.
func add(f *rules.Fold, name string, weight int, reason string) {
	f.Score += weight
	f.Reasons = append(f.Reasons, reason)
	f.Results = append(f.Results, domain.RuleResult{
		RuleName: name,
		Matched:  true,
		Score:    weight,
		Reason:   reason,
	})
}

func isDuplicate(tx *domain.Transaction, recent []*domain.Transaction) bool {
	for _, r := range recent {
		if r == nil {
			continue
		}
		if r.Amount.Equal(tx.Amount) && strings.EqualFold(r.Merchant, tx.Merchant) {
			return true
		}
	}
	return false
}

// TransactionCount returns the number of transactions for an account within
// the trailing window ending at now.
func TransactionCount(ctx context.Context, c Counter, accountID string, window time.Duration, now time.Time) (int64, error) {
	if accountID == "" {
		return 0, fmt.Errorf("%w: accountID is required", domain.ErrInvalidInput)
	}
	count, err := c.CountTransactions(ctx, accountID, now.Add(-window))
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
