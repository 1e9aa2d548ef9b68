package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/velocity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kestrel-detection")

// ReasonSeparator joins the reasons of an alert.
const ReasonSeparator = "; "

// Notifier is told about every persisted alert.
type Notifier interface {
	Notify(ctx context.Context, alert *domain.FraudAlert) error
}

// Assessment is the scored, classified view of one transaction.
type Assessment struct {
	Transaction *domain.Transaction `json:"transaction"`
	Score       int                 `json:"score"`
	RiskLevel   domain.RiskLevel    `json:"riskLevel"`
	Reasons     []string            `json:"reasons"`
	Results     []domain.RuleResult `json:"results"`
}

// Reason returns the reasons joined the way alerts store them.
func (a *Assessment) Reason() string {
	return strings.Join(a.Reasons, ReasonSeparator)
}

// Detector runs the full pipeline for one transaction at a time. It holds no
// mutable state and is safe for concurrent use across accounts.
type Detector struct {
	rules      []rules.Rule
	analyzer   *velocity.Analyzer
	thresholds Thresholds
	txStore    domain.TransactionStore
	alerts     domain.AlertStore
	notifier   Notifier
	now        func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the wall clock used for the history window and alert creation time.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// WithNotifier publishes persisted alerts through n.
func WithNotifier(n Notifier) Option {
	return func(d *Detector) {
		d.notifier = n
	}
}

// New creates a Detector. The rule slice is not copied and must not be modified afterwards.
func New(ruleSet []rules.Rule, analyzer *velocity.Analyzer, thresholds Thresholds,
	txStore domain.TransactionStore, alerts domain.AlertStore, opts ...Option) *Detector {
	d := &Detector{
		rules:      ruleSet,
		analyzer:   analyzer,
		thresholds: thresholds,
		txStore:    txStore,
		alerts:     alerts,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Rules returns the active rule set in evaluation order.
func (d *Detector) Rules() []rules.Rule {
	return d.rules
}

// Thresholds returns the classification cutoffs.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Assess scores and classifies tx without writing anything.
func (d *Detector) Assess(ctx context.Context, tx *domain.Transaction) (*Assessment, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: transaction is required", domain.ErrInvalidInput)
	}
	return d.assess(ctx, tx, d.now())
}

func (d *Detector) assess(ctx context.Context, tx *domain.Transaction, now time.Time) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fold := rules.Evaluate(tx, d.rules)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	history, err := d.analyzer.Analyze(ctx, tx, now)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageHistory, TxID: tx.ID, Err: err}
	}
	fold.Merge(history)

	return &Assessment{
		Transaction: tx,
		Score:       fold.Score,
		RiskLevel:   d.thresholds.Classify(fold.Score),
		Reasons:     fold.Reasons,
		Results:     fold.Results,
	}, nil
}

// AnalyzeAndPersist scores tx, persists it and, when the tier is above LOW,
// persists and returns an alert. A LOW tier returns a nil alert and nil error.
//
// Storage failures are returned as *domain.StageError. Saving a transaction
// whose ID already exists is not a failure. Cancellation is honoured until the
// transaction is written; after that the alert decision always completes.
func (d *Detector) AnalyzeAndPersist(ctx context.Context, tx *domain.Transaction) (*domain.FraudAlert, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: transaction is required", domain.ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "detection.AnalyzeAndPersist",
		trace.WithAttributes(
			attribute.String("tx.id", tx.ID),
			attribute.String("account.id", tx.AccountID),
		),
	)
	defer span.End()

	alert, err := d.analyzeAndPersist(ctx, tx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if alert != nil {
		span.SetAttributes(
			attribute.Int("score", alert.Score),
			attribute.String("risk.level", string(alert.RiskLevel)),
			attribute.String("alert.id", alert.ID),
		)
	}
	return alert, nil
}

func (d *Detector) analyzeAndPersist(ctx context.Context, tx *domain.Transaction) (*domain.FraudAlert, error) {
	now := d.now()

	assessment, err := d.assess(ctx, tx, now)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := d.txStore.SaveTransaction(ctx, tx); err != nil {
		if !errors.Is(err, domain.ErrDuplicateTransaction) {
			return nil, &domain.StageError{Stage: domain.StageSaveTransaction, TxID: tx.ID, Err: err}
		}
		slog.Info("transaction already persisted",
			"tx_id", tx.ID,
			"account_id", tx.AccountID,
		)
	}

	// The transaction is stored; finish the alert decision regardless of cancellation.
	ctx = context.WithoutCancel(ctx)

	if assessment.RiskLevel == domain.RiskLow {
		slog.Debug("transaction analysed",
			"tx_id", tx.ID,
			"account_id", tx.AccountID,
			"score", assessment.Score,
			"risk_level", assessment.RiskLevel,
		)
		return nil, nil
	}

	alert := &domain.FraudAlert{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Score:         assessment.Score,
		RiskLevel:     assessment.RiskLevel,
		Reason:        assessment.Reason(),
		CreatedAt:     d.now().UTC(),
	}

	if err := d.alerts.SaveAlert(ctx, alert); err != nil {
		return nil, &domain.StageError{Stage: domain.StageSaveAlert, TxID: tx.ID, Err: err}
	}

	slog.Warn("fraud alert raised",
		"alert_id", alert.ID,
		"tx_id", tx.ID,
		"account_id", tx.AccountID,
		"score", alert.Score,
		"risk_level", alert.RiskLevel,
	)

	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, alert); err != nil {
			slog.Error("failed to publish alert",
				"alert_id", alert.ID,
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	return alert, nil
}
