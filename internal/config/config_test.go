package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	def := domain.DefaultConfig()
	assert.Equal(t, def.Detection, cfg.Detection)
	assert.Equal(t, def.Repository.Driver, cfg.Repository.Driver)
	assert.Equal(t, def.Storage, cfg.Storage)
	assert.Equal(t, 5*time.Minute, cfg.Cache.LocalTTL)
	assert.Equal(t, time.Minute, cfg.Cache.AlertTTL)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, def.Rules, cfg.Rules)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
detection:
  mediumCutoff: 40
  highCutoff: 80
  velocityWindowSeconds: 300
rules:
  - type: amount_threshold
    threshold: 1000.50
    weight: 35
  - type: geo_risk
    enabled: false
  - type: expression
    name: BigForeign
    expression: amount > 500.0 && currency != "EUR"
    weight: 10
riskyLocations: [Nigeria, Russia]
riskyMerchants:
  - CryptoX
cache:
  type: none
  alertTTL: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Detection.MediumCutoff)
	assert.Equal(t, 80, cfg.Detection.HighCutoff)
	assert.Equal(t, 300, cfg.Detection.VelocityWindowSeconds)
	assert.Equal(t, 3, cfg.Detection.VelocityLimit, "unset keys keep defaults")

	require.Len(t, cfg.Rules, 3)
	assert.Equal(t, "1000.5", cfg.Rules[0].Threshold)
	require.NotNil(t, cfg.Rules[0].Weight)
	assert.Equal(t, 35, *cfg.Rules[0].Weight)
	assert.False(t, cfg.Rules[1].IsEnabled())
	assert.Equal(t, "BigForeign", cfg.Rules[2].Name)

	assert.Equal(t, []string{"Nigeria", "Russia"}, cfg.RiskyLocations)
	assert.Equal(t, []string{"CryptoX"}, cfg.RiskyMerchants)
	assert.Equal(t, "none", cfg.Cache.Type)
	assert.Equal(t, 30*time.Second, cfg.Cache.AlertTTL)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "detection:\n  highCutoff: 80\n")
	t.Setenv("KESTREL_DETECTION_HIGHCUTOFF", "90")
	t.Setenv("KESTREL_WORKER_COUNT", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Detection.HighCutoff)
	assert.Equal(t, 8, cfg.Worker.Count)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"CutoffsInverted", "detection:\n  mediumCutoff: 70\n  highCutoff: 60\n"},
		{"UnknownDriver", "repository:\n  driver: oracle\n"},
		{"NegativeWorkers", "worker:\n  count: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, SetupLogging(domain.LoggingConfig{Level: "warn", Format: "json"}, &buf))

	slog.Info("hidden")
	slog.Warn("shown", "tx_id", "tx-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "tx-1", line["tx_id"])

	buf.Reset()
	require.NoError(t, SetupLogging(domain.LoggingConfig{Level: "debug", Format: "console"}, &buf))
	slog.Debug("plain", "account_id", "acc-1")
	assert.Contains(t, buf.String(), "account_id=acc-1")

	assert.ErrorIs(t, SetupLogging(domain.LoggingConfig{Level: "loud"}, &buf), domain.ErrInvalidConfig)
	assert.ErrorIs(t, SetupLogging(domain.LoggingConfig{Format: "xml"}, &buf), domain.ErrInvalidConfig)
}
