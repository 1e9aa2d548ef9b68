package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/sony/gobreaker"
)

// Guarded wraps a repository with the storage call policy: a per-call
// deadline and a circuit breaker shared by all operations.
// Duplicate transactions, missing records and caller cancellation do not
// count as breaker failures.
type Guarded struct {
	inner   domain.Repository
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewGuarded applies cfg to inner. A zero timeout disables deadlines and a
// disabled breaker passes every call straight through.
func NewGuarded(inner domain.Repository, cfg domain.StorageConfig) *Guarded {
	g := &Guarded{
		inner:   inner,
		timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
	}

	if cfg.BreakerEnabled {
		maxFailures := uint32(cfg.BreakerMaxFailures)
		if maxFailures == 0 {
			maxFailures = 5
		}
		openFor := time.Duration(cfg.BreakerOpenSeconds) * time.Second
		if openFor == 0 {
			openFor = 30 * time.Second
		}

		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "storage",
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: isSuccessful,
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}

	return g
}

func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrDuplicateTransaction) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, context.Canceled)
}

// State reports the breaker state, "disabled" when no breaker is configured.
func (g *Guarded) State() string {
	if g.breaker == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}

func (g *Guarded) call(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if g.breaker == nil {
		return fn(ctx)
	}
	return g.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
}

func (g *Guarded) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return nil, g.inner.SaveTransaction(ctx, tx)
	})
	return err
}

func (g *Guarded) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	v, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return g.inner.GetTransaction(ctx, txID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Transaction), nil
}

func (g *Guarded) RecentTransactions(ctx context.Context, accountID string, since time.Time) ([]*domain.Transaction, error) {
	v, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return g.inner.RecentTransactions(ctx, accountID, since)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Transaction), nil
}

func (g *Guarded) CountTransactions(ctx context.Context, accountID string, since time.Time) (int64, error) {
	v, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return g.inner.CountTransactions(ctx, accountID, since)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (g *Guarded) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	_, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return nil, g.inner.SaveAlert(ctx, alert)
	})
	return err
}

func (g *Guarded) AlertsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.FraudAlert, error) {
	v, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return g.inner.AlertsByAccount(ctx, accountID, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.FraudAlert), nil
}

func (g *Guarded) Ping(ctx context.Context) error {
	_, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return nil, g.inner.Ping(ctx)
	})
	return err
}

func (g *Guarded) Close() error {
	return g.inner.Close()
}
