package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// AlertStore caches per-account alert listings in front of a repository.
// The newest domain.DefaultAlertLimit alerts of an account are cached; larger
// limits go straight to the repository. SaveAlert invalidates the account in
// this store's cache only: alerts written by another process through another
// cache stay invisible until the cached listing expires after the TTL. Readers
// that share storage with other writers need a shared (redis) cache.
type AlertStore struct {
	domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewAlertStore wraps repo. A non-positive ttl defaults to one minute.
func NewAlertStore(repo domain.Repository, c domain.Cache, ttl time.Duration) *AlertStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AlertStore{Repository: repo, cache: c, ttl: ttl}
}

func alertsKey(accountID string) string {
	return "alerts:" + accountID
}

// SaveAlert persists alert and drops the cached listing of its account.
func (s *AlertStore) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	if err := s.Repository.SaveAlert(ctx, alert); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, alertsKey(alert.AccountID)); err != nil {
		slog.Warn("failed to invalidate alert cache",
			"account_id", alert.AccountID,
			"error", err,
		)
	}
	return nil
}

// AlertsByAccount serves the newest alerts of an account, newest first.
// Cache failures fall back to the repository.
func (s *AlertStore) AlertsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.FraudAlert, error) {
	if limit <= 0 {
		limit = domain.DefaultAlertLimit
	}
	if limit > domain.DefaultAlertLimit {
		return s.Repository.AlertsByAccount(ctx, accountID, limit)
	}

	key := alertsKey(accountID)
	if data, err := s.cache.Get(ctx, key); err != nil {
		slog.Warn("alert cache read failed", "account_id", accountID, "error", err)
	} else if data != nil {
		var cached []*domain.FraudAlert
		if err := json.Unmarshal(data, &cached); err == nil {
			return head(cached, limit), nil
		}
		slog.Warn("discarding corrupt alert cache entry", "account_id", accountID)
	}

	alerts, err := s.Repository.AlertsByAccount(ctx, accountID, domain.DefaultAlertLimit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(alerts); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			slog.Warn("alert cache write failed", "account_id", accountID, "error", err)
		}
	}
	return head(alerts, limit), nil
}

func head(alerts []*domain.FraudAlert, n int) []*domain.FraudAlert {
	if len(alerts) > n {
		return alerts[:n]
	}
	return alerts
}
