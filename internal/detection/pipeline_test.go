package detection

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/velocity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSQLitePipeline wires a detector to a fresh SQLite store through the
// guarded repository, the way the CLI does.
func newSQLitePipeline(t *testing.T, ruleSet []rules.Rule) (*Detector, domain.Repository) {
	t.Helper()

	sqlRepo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "pipeline.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { sqlRepo.Close() })

	repo := repository.NewGuarded(sqlRepo, domain.DefaultConfig().Storage)
	analyzer := velocity.NewAnalyzer(repo, velocity.SettingsFrom(domain.DefaultConfig().Detection))
	d := New(ruleSet, analyzer, Thresholds{Medium: 30, High: 60}, repo, repo,
		WithClock(func() time.Time { return testNow }))
	return d, repo
}

func TestPipelineScenarioNoRulesEmptyHistory(t *testing.T) {
	d, repo := newSQLitePipeline(t, nil)
	ctx := context.Background()

	alert, err := d.AnalyzeAndPersist(ctx, sampleTx("tx-a"))
	require.NoError(t, err)
	assert.Nil(t, alert)

	_, err = repo.GetTransaction(ctx, "tx-a")
	require.NoError(t, err, "transaction persisted")

	alerts, err := repo.AlertsByAccount(ctx, "acc-1", 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestPipelineScenarioSingleRuleMedium(t *testing.T) {
	rule := rules.NewAmountThresholdRule("HighAmountRule", decimal.NewFromInt(50), 50)
	d, repo := newSQLitePipeline(t, []rules.Rule{rule})
	ctx := context.Background()

	alert, err := d.AnalyzeAndPersist(ctx, sampleTx("tx-b"))
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 50, alert.Score)
	assert.Equal(t, domain.RiskMedium, alert.RiskLevel)
	assert.Contains(t, alert.Reason, "HighAmountRule")
	assert.NotEmpty(t, alert.ID)

	stored, err := repo.AlertsByAccount(ctx, "acc-1", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, alert.ID, stored[0].ID)
	assert.Equal(t, alert.Reason, stored[0].Reason)
}

func TestPipelineScenarioVelocityAloneStaysLow(t *testing.T) {
	d, repo := newSQLitePipeline(t, nil)
	ctx := context.Background()

	for i, id := range []string{"h-1", "h-2", "h-3"} {
		tx := sampleTx(id)
		tx.Amount = decimal.NewFromInt(int64(10 + i))
		tx.Timestamp = testNow.Add(-time.Duration(20*(i+1)) * time.Second)
		require.NoError(t, repo.SaveTransaction(ctx, tx))
	}

	a, err := d.Assess(ctx, sampleTx("tx-c"))
	require.NoError(t, err)
	assert.Equal(t, 20, a.Score)
	assert.Equal(t, domain.RiskLow, a.RiskLevel)

	alert, err := d.AnalyzeAndPersist(ctx, sampleTx("tx-c"))
	require.NoError(t, err)
	assert.Nil(t, alert, "velocity alone is below the medium cutoff")
}

func TestPipelineScenarioDuplicateIgnoresCase(t *testing.T) {
	d, repo := newSQLitePipeline(t, nil)
	ctx := context.Background()

	prev := sampleTx("h-1")
	prev.Merchant = "gRoCeR"
	prev.Timestamp = testNow.Add(-30 * time.Second)
	require.NoError(t, repo.SaveTransaction(ctx, prev))

	a, err := d.Assess(ctx, sampleTx("tx-d"))
	require.NoError(t, err)
	assert.Equal(t, 15, a.Score)
	assert.Equal(t, []string{velocity.DuplicateReason}, a.Reasons)
}

func TestPipelineDefaultRuleSet(t *testing.T) {
	ruleSet, err := rules.Build(domain.RulesConfig{
		Definitions:    domain.DefaultRuleDefinitions(),
		RiskyLocations: []string{"Nigeria"},
		RiskyMerchants: []string{"CryptoX"},
	})
	require.NoError(t, err)
	d, _ := newSQLitePipeline(t, ruleSet)

	tx := &domain.Transaction{
		ID:        "tx-risky",
		AccountID: "acc-9",
		Amount:    decimal.NewFromInt(75000),
		Currency:  "USD",
		Timestamp: time.Date(2025, 6, 1, 2, 15, 0, 0, time.UTC),
		Merchant:  "CryptoX",
		Location:  "Nigeria",
		Channel:   "Online",
	}
	alert, err := d.AnalyzeAndPersist(context.Background(), tx)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 115, alert.Score)
	assert.Equal(t, domain.RiskHigh, alert.RiskLevel)

	parts := strings.Split(alert.Reason, ReasonSeparator)
	assert.Equal(t, []string{
		"HighAmountRule:HighAmount:75000",
		"GeoLocationRule:RiskCountry:Nigeria",
		"NightTimeRule:NightTimeHour:2",
		"ChannelRiskRule:Channel:ONLINE",
		"RiskyMerchantRule:RiskyMerchant:CryptoX",
	}, parts)
}

func TestPipelineIdempotentPersistence(t *testing.T) {
	d, repo := newSQLitePipeline(t, nil)
	ctx := context.Background()

	_, err := d.AnalyzeAndPersist(ctx, sampleTx("tx-same"))
	require.NoError(t, err)
	_, err = d.AnalyzeAndPersist(ctx, sampleTx("tx-same"))
	require.NoError(t, err)

	count, err := repo.CountTransactions(ctx, "acc-1", testNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
