package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAlerts() []*domain.FraudAlert {
	return []*domain.FraudAlert{
		{
			ID: "a-3", TransactionID: "T3", AccountID: "acc-1", Score: 115, RiskLevel: domain.RiskHigh,
			Reason:    "HighAmountRule:HighAmount:75000; GeoLocationRule:RiskCountry:Nigeria",
			CreatedAt: time.Date(2025, 7, 2, 9, 30, 0, 0, time.UTC),
		},
		{
			ID: "a-2", TransactionID: "T2", AccountID: "acc-1", Score: 35, RiskLevel: domain.RiskMedium,
			Reason:    "Velocity: 3 txns within last 120s; Duplicate: same amount+merchant in recent window",
			CreatedAt: time.Date(2025, 6, 18, 3, 0, 0, 0, time.UTC),
		},
		{
			ID: "a-1", TransactionID: "T1", AccountID: "acc-1", Score: 35, RiskLevel: domain.RiskMedium,
			Reason:    "Velocity: 3 txns within last 120s; Duplicate: same amount+merchant in recent window",
			CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleAlerts()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{
		"a-3", "T3", "acc-1", "115", "HIGH",
		"HighAmountRule:HighAmount:75000; GeoLocationRule:RiskCountry:Nigeria",
		"2025-07-02 09:30:00",
	}, records[1])
}

func TestExportCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, nil))
	assert.Equal(t, "id,transactionId,accountId,score,riskLevel,reason,createdAt\n", buf.String())
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, sampleAlerts()))
	assert.Contains(t, buf.String(), "\n  {", "indented")

	var decoded []domain.FraudAlert
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "a-3", decoded[0].ID)
	assert.Equal(t, domain.RiskHigh, decoded[0].RiskLevel)

	buf.Reset()
	require.NoError(t, ExportJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestExportFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "csv", nil))
	require.NoError(t, Export(&buf, "json", nil))
	assert.ErrorIs(t, Export(&buf, "pdf", nil), domain.ErrInvalidInput)
}

func TestSummarize(t *testing.T) {
	s := Summarize("acc-1", sampleAlerts())

	assert.Equal(t, "acc-1", s.AccountID)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.ByLevel[domain.RiskHigh])
	assert.Equal(t, 2, s.ByLevel[domain.RiskMedium])
	assert.Equal(t, []Count{{"2025-06", 2}, {"2025-07", 1}}, s.PerMonth)

	require.Len(t, s.TopReasons, 2)
	assert.Equal(t, 2, s.TopReasons[0].Count)
	assert.Contains(t, s.TopReasons[0].Key, "Velocity")

	require.NotNil(t, s.Latest)
	assert.Equal(t, time.Date(2025, 7, 2, 9, 30, 0, 0, time.UTC), *s.Latest)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("acc-0", nil)
	assert.Zero(t, s.Total)
	assert.Empty(t, s.PerMonth)
	assert.Empty(t, s.TopReasons)
	assert.Nil(t, s.Latest)
}

func TestSummarizeTopReasonsCapped(t *testing.T) {
	var alerts []*domain.FraudAlert
	for _, r := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		alerts = append(alerts, &domain.FraudAlert{RiskLevel: domain.RiskMedium, Reason: r})
	}
	alerts = append(alerts, &domain.FraudAlert{RiskLevel: domain.RiskMedium})

	s := Summarize("acc", alerts)
	require.Len(t, s.TopReasons, TopReasonCount)
	assert.Equal(t, []string{"Unknown", "a", "b", "c", "d"}, keys(s.TopReasons), "ties break by key")
	assert.Empty(t, s.PerMonth)
}

func keys(counts []Count) []string {
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Key
	}
	return out
}
