package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepo fails every call with err and records how many calls reached it.
type flakyRepo struct {
	domain.Repository
	err   error
	calls int
	delay time.Duration
}

func (f *flakyRepo) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *flakyRepo) Close() error { return nil }

func TestGuardedBreakerOpens(t *testing.T) {
	inner := &flakyRepo{err: errors.New("connection refused")}
	g := NewGuarded(inner, domain.StorageConfig{
		BreakerEnabled:     true,
		BreakerMaxFailures: 3,
		BreakerOpenSeconds: 60,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, g.SaveTransaction(ctx, &domain.Transaction{ID: "tx"}))
	}
	assert.Equal(t, "open", g.State())

	err := g.SaveTransaction(ctx, &domain.Transaction{ID: "tx"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open breaker short-circuits the call")
}

func TestGuardedDuplicatesDoNotTrip(t *testing.T) {
	inner := &flakyRepo{err: fmt.Errorf("%w: tx", domain.ErrDuplicateTransaction)}
	g := NewGuarded(inner, domain.StorageConfig{
		BreakerEnabled:     true,
		BreakerMaxFailures: 2,
	})

	for i := 0; i < 5; i++ {
		err := g.SaveTransaction(context.Background(), &domain.Transaction{ID: "tx"})
		assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)
	}
	assert.Equal(t, "closed", g.State())
	assert.Equal(t, 5, inner.calls)
}

func TestGuardedTimeout(t *testing.T) {
	inner := &flakyRepo{delay: time.Second}
	g := NewGuarded(inner, domain.StorageConfig{TimeoutMs: 20})

	err := g.SaveTransaction(context.Background(), &domain.Transaction{ID: "tx"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "disabled", g.State())
}

func TestGuardedPassThrough(t *testing.T) {
	repo := newTestRepo(t)
	g := NewGuarded(repo, domain.DefaultConfig().Storage)
	ctx := context.Background()

	require.NoError(t, g.Ping(ctx))
	require.NoError(t, g.SaveTransaction(ctx, &domain.Transaction{ID: "tx-1", AccountID: "acc"}))

	_, err := g.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "closed", g.State())

	alert := &domain.FraudAlert{TransactionID: "tx-1", AccountID: "acc", Score: 45, RiskLevel: domain.RiskMedium, CreatedAt: time.Now()}
	require.NoError(t, g.SaveAlert(ctx, alert))
	assert.NotEmpty(t, alert.ID)

	alerts, err := g.AlertsByAccount(ctx, "acc", 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}
