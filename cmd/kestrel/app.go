package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/detection"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// app holds the wired components shared by the commands.
type app struct {
	store    domain.Repository
	guarded  *repository.Guarded
	cache    domain.Cache
	bus      domain.EventBus
	detector *detection.Detector
	settings velocity.Settings

	closers []func() error
}

// newApp wires storage, cache, bus and the detector from cfg. Close must be
// called when the command finishes.
func newApp(ctx context.Context, cfg *domain.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	ruleSet, err := rules.Build(cfg.RulesConfig())
	if err != nil {
		return nil, err
	}
	thresholds := detection.ThresholdsFrom(cfg.Detection)
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	sqlRepo, err := repository.New(cfg.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	a.guarded = repository.NewGuarded(sqlRepo, cfg.Storage)
	a.store = a.guarded
	a.closers = append(a.closers, a.guarded.Close)
	slog.Debug("repository initialized",
		"driver", cfg.Repository.Driver,
		"breaker", a.guarded.State(),
	)

	if cfg.Cache.Type != "none" {
		a.cache, err = cache.New(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		a.closers = append(a.closers, a.cache.Close)
		a.store = cache.NewAlertStore(a.guarded, a.cache, cfg.Cache.AlertTTL)
		slog.Debug("cache initialized", "type", cfg.Cache.Type)
	}

	opts := []detection.Option{}
	if cfg.EventBus.Type != "none" {
		a.bus, err = bus.New(cfg.EventBus)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize event bus: %w", err)
		}
		a.closers = append(a.closers, a.bus.Close)
		if _, err := a.bus.Subscribe(ctx, domain.TopicAlertCreated, logAlertNotification); err != nil {
			return nil, fmt.Errorf("failed to subscribe to alerts: %w", err)
		}
		opts = append(opts, detection.WithNotifier(detection.NewBusNotifier(a.bus)))
		slog.Debug("event bus initialized", "type", cfg.EventBus.Type)
	}

	a.settings = velocity.SettingsFrom(cfg.Detection)
	analyzer := velocity.NewAnalyzer(a.store, a.settings)
	a.detector = detection.New(ruleSet, analyzer, thresholds, a.store, a.store, opts...)

	return a, nil
}

// readStore is the store a long-running reader should use. A process-local
// cache never sees invalidations from other writers, so listings then bypass it.
func (a *app) readStore(cacheType string) domain.Repository {
	if a.cache != nil && cacheType == "memory" {
		return a.guarded
	}
	return a.store
}

// logAlertNotification records every alert seen on the bus.
func logAlertNotification(_ context.Context, msg *domain.Message) error {
	var alert domain.FraudAlert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		return fmt.Errorf("failed to decode alert notification: %w", err)
	}
	slog.Debug("alert notification received",
		"message_id", msg.ID,
		"alert_id", alert.ID,
		"account_id", alert.AccountID,
		"risk_level", alert.RiskLevel,
	)
	return nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("failed to close component", "error", err)
		}
	}
	a.closers = nil
}
