package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchCSV = `transactionId,accountId,amount,currency,timestamp,merchant,location,channel
t1,acct-a,75000,USD,2025-06-01 02:15:00,CryptoX,Nigeria,Online
t2,acct-b,12.50,USD,2025-06-01 14:00:00,Grocer,USA,POS
`

func writeFixture(t *testing.T) (configPath, csvPath string) {
	t.Helper()
	dir := t.TempDir()

	configPath = filepath.Join(dir, "kestrel.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
repository:
  driver: sqlite
  sqlitePath: `+filepath.Join(dir, "kestrel.db")+`
logging:
  level: error
riskyLocations: [Nigeria]
riskyMerchants: [CryptoX]
`), 0o644))

	csvPath = filepath.Join(dir, "batch.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(batchCSV), 0o644))
	return configPath, csvPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunAlertsExport(t *testing.T) {
	configPath, csvPath := writeFixture(t)

	out, err := execute(t, "--config", configPath, "run", "--input", csvPath, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "ALERT HIGH")
	assert.Contains(t, out, "tx=t1")
	assert.NotContains(t, out, "tx=t2")
	assert.Contains(t, out, "Processed: 2 transactions")
	assert.Contains(t, out, "Alerts:    1")

	out, err = execute(t, "--config", configPath, "alerts", "acct-a")
	require.NoError(t, err)
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "t1")

	out, err = execute(t, "--config", configPath, "alerts", "acct-b")
	require.NoError(t, err)
	assert.Contains(t, out, "no alerts for account acct-b")

	exportPath := filepath.Join(t.TempDir(), "nested", "acct-a.json")
	_, err = execute(t, "--config", configPath, "export", "acct-a", "--format", "json", "--out", exportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	var alerts []domain.FraudAlert
	require.NoError(t, json.Unmarshal(data, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "t1", alerts[0].TransactionID)
	assert.Equal(t, domain.RiskHigh, alerts[0].RiskLevel)

	out, err = execute(t, "--config", configPath, "summary", "acct-a")
	require.NoError(t, err)
	assert.Contains(t, out, "Alerts:  1")
}

func TestRunRequiresInput(t *testing.T) {
	configPath, _ := writeFixture(t)

	_, err := execute(t, "--config", configPath, "run", "--input", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExportRejectsFormat(t *testing.T) {
	configPath, _ := writeFixture(t)

	_, err := execute(t, "--config", configPath, "export", "acct-a", "--format", "xml")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDBCheck(t *testing.T) {
	configPath, _ := writeFixture(t)

	out, err := execute(t, "--config", configPath, "db-check")
	require.NoError(t, err)
	assert.Contains(t, out, "ping       ok (sqlite")
	assert.Contains(t, out, "round-trip ok")
}

func TestVersion(t *testing.T) {
	configPath, _ := writeFixture(t)

	out, err := execute(t, "--config", configPath, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kestrel dev")
}

func TestServeReadsBypassMemoryCache(t *testing.T) {
	configPath, _ := writeFixture(t)
	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	require.Equal(t, "memory", loaded.Cache.Type)

	ctx := context.Background()
	reader, err := newApp(ctx, loaded)
	require.NoError(t, err)
	defer reader.Close()

	listed, err := reader.readStore(loaded.Cache.Type).AlertsByAccount(ctx, "acct-z", 0)
	require.NoError(t, err)
	assert.Empty(t, listed)

	writer, err := newApp(ctx, loaded)
	require.NoError(t, err)
	defer writer.Close()
	require.NoError(t, writer.store.SaveAlert(ctx, &domain.FraudAlert{
		TransactionID: "tz",
		AccountID:     "acct-z",
		Score:         40,
		RiskLevel:     domain.RiskMedium,
		Reason:        "HighAmountRule:HighAmount:60000",
		CreatedAt:     time.Now().UTC(),
	}))

	listed, err = reader.readStore(loaded.Cache.Type).AlertsByAccount(ctx, "acct-z", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1, "alerts written by another process are visible at once")
	assert.Equal(t, "tz", listed[0].TransactionID)

	loaded.Cache.Type = "none"
	bare, err := newApp(ctx, loaded)
	require.NoError(t, err)
	defer bare.Close()
	assert.Same(t, bare.guarded, bare.readStore(loaded.Cache.Type))
}
