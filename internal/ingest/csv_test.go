package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/velocity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `transactionId,accountId,amount,currency,timestamp,merchant,location,channel
T1, acc-1 ,120.50,USD,2025-06-18 02:58:00,Grocer,France,Card

T2,acc-1,75000,USD,2025-06-18T03:10,CryptoX,Nigeria,Online
,acc-2,1,USD,2025-06-18 04:00:00,Ignored,Nowhere,Card
T3,acc-2,0,EUR,,Cafe,Spain,POS
`

// kolkata is a fixed +05:30 zone, so results do not depend on the host's zone.
var kolkata = time.FixedZone("IST", 5*3600+30*60)

// withLocal swaps time.Local for the duration of the test.
func withLocal(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = prev })
}

func TestReadCSV(t *testing.T) {
	withLocal(t, kolkata)

	txs, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	first := txs[0]
	assert.Equal(t, "T1", first.ID)
	assert.Equal(t, "acc-1", first.AccountID, "fields are trimmed")
	assert.True(t, decimal.RequireFromString("120.5").Equal(first.Amount))
	assert.Equal(t, "USD", first.Currency)
	assert.True(t, time.Date(2025, 6, 18, 2, 58, 0, 0, kolkata).Equal(first.Timestamp), "read as local wall-clock time")
	assert.Equal(t, 2, first.Timestamp.Hour())
	assert.Equal(t, "Grocer", first.Merchant)
	assert.Equal(t, "France", first.Location)
	assert.Equal(t, "Card", first.Channel)

	assert.True(t, time.Date(2025, 6, 18, 3, 10, 0, 0, kolkata).Equal(txs[1].Timestamp))

	assert.Equal(t, "T3", txs[2].ID, "blank transactionId rows are skipped")
	assert.False(t, txs[2].HasTimestamp())
	assert.True(t, txs[2].Amount.IsZero())
}

func TestReadCSVColumnOrder(t *testing.T) {
	in := "Channel,Amount,TransactionID,AccountID\nOnline,10,T9,acc-9\n"
	txs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "T9", txs[0].ID)
	assert.Equal(t, "Online", txs[0].Channel)
	assert.Empty(t, txs[0].Merchant)
}

func TestReadCSVErrors(t *testing.T) {
	header := "transactionId,accountId,amount,currency,timestamp,merchant,location,channel\n"
	tests := []struct {
		name    string
		in      string
		wantMsg string
	}{
		{"Empty", "", "empty CSV"},
		{"MissingColumn", "transactionId,amount\nT1,5\n", `missing column "accountid"`},
		{"BadAmount", header + "T1,acc,abc,USD,,m,l,c\n", "line 2: invalid amount"},
		{"NegativeAmount", header + "T1,acc,10,USD,,m,l,c\nT2,acc,-5,USD,,m,l,c\n", "line 3: negative amount"},
		{"BadTimestamp", header + "T1,acc,10,USD,18/06/2025,m,l,c\n", "line 2: unable to parse timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	withLocal(t, kolkata)

	local := time.Date(2025, 6, 18, 2, 58, 30, 0, kolkata)
	for _, in := range []string{"2025-06-18 02:58:30", "2025-06-18T02:58:30"} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, local.Equal(got), in)
		assert.Equal(t, 2, got.Hour(), in)
	}

	utc := time.Date(2025, 6, 18, 2, 58, 30, 0, time.UTC)
	for _, in := range []string{"2025-06-18T02:58:30Z", "2025-06-18T04:58:30+02:00"} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, utc.Equal(got), "explicit offsets are kept: %s", in)
	}

	got, err := ParseTimestamp("2025-06-18T02:58")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Hour())

	got, err = ParseTimestamp("  ")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txs.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	txs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestLocalTimestampsAgainstVelocityWindow(t *testing.T) {
	withLocal(t, kolkata)
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "ingest.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	now := time.Now()
	stamp := func(d time.Duration) string {
		return now.Add(-d).In(time.Local).Format("2006-01-02 15:04:05")
	}
	in := "transactionId,accountId,amount,currency,timestamp,merchant,location,channel\n" +
		"old,acc-1,42,USD," + stamp(2*time.Hour) + ",Grocer,France,POS\n"

	txs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.NoError(t, repo.SaveTransaction(ctx, txs[0]))

	analyzer := velocity.NewAnalyzer(repo, velocity.Settings{
		Window:          120 * time.Second,
		Limit:           1,
		VelocityWeight:  20,
		DuplicateWeight: 15,
	})
	next := &domain.Transaction{
		ID:        "next",
		AccountID: "acc-1",
		Amount:    decimal.NewFromInt(42),
		Merchant:  "Grocer",
		Timestamp: now,
	}

	f, err := analyzer.Analyze(ctx, next, now)
	require.NoError(t, err)
	assert.Zero(t, f.Score, "a row two hours old is outside the window: %v", f.Reasons)

	in = "transactionId,accountId,amount,currency,timestamp,merchant,location,channel\n" +
		"fresh,acc-1,42,USD," + stamp(30*time.Second) + ",Grocer,France,POS\n"
	txs, err = ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.NoError(t, repo.SaveTransaction(ctx, txs[0]))

	f, err = analyzer.Analyze(ctx, next, now)
	require.NoError(t, err)
	assert.Equal(t, 35, f.Score, "velocity and duplicate both fire for a row 30s old")
}
