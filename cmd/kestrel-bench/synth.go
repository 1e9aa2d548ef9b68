package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	riskyLocations = []string{"Nigeria", "North Korea"}
	riskyMerchants = []string{"CryptoX", "QuickCash"}

	safeLocations = []string{"USA", "UK", "Germany", "Canada"}
	safeMerchants = []string{"Grocer", "Books", "Fuel", "Pharmacy", "Cinema"}
	channels      = []string{"POS", "ATM", "Mobile", "Online"}
)

type batch struct {
	txs   []*domain.Transaction
	fraud map[string]bool
}

// generate builds a deterministic labelled batch ending at end. Fraud-shaped
// transactions combine at least two risk signals.
func generate(seed uint64, total, accounts int, fraudRate float64, end time.Time) batch {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := batch{
		txs:   make([]*domain.Transaction, 0, total),
		fraud: make(map[string]bool),
	}

	start := end.Add(-30 * 24 * time.Hour)
	span := end.Sub(start)

	for i := 0; i < total; i++ {
		tx := &domain.Transaction{
			ID:        fmt.Sprintf("bench-%07d", i),
			AccountID: fmt.Sprintf("acct-%04d", rng.IntN(accounts)),
			Currency:  "USD",
			Timestamp: start.Add(time.Duration(rng.Int64N(int64(span)))).Truncate(time.Second),
			Location:  pick(rng, safeLocations),
			Merchant:  pick(rng, safeMerchants),
			Channel:   pick(rng, channels[:3]),
			Amount:    decimal.NewFromFloat(5 + rng.Float64()*900).Round(2),
		}
		if hour := tx.Timestamp.Hour(); hour < 6 {
			tx.Timestamp = tx.Timestamp.Add(-8 * time.Hour)
		}

		if rng.Float64() < fraudRate {
			shapeFraud(rng, tx)
			b.fraud[tx.ID] = true
		}
		b.txs = append(b.txs, tx)
	}
	return b
}

func shapeFraud(rng *rand.Rand, tx *domain.Transaction) {
	signals := rng.Perm(4)[:2+rng.IntN(3)]
	for _, s := range signals {
		switch s {
		case 0:
			tx.Amount = decimal.NewFromInt(int64(50000 + rng.IntN(450000)))
		case 1:
			tx.Location = pick(rng, riskyLocations)
		case 2:
			tx.Merchant = pick(rng, riskyMerchants)
		case 3:
			day := tx.Timestamp.Truncate(24 * time.Hour)
			tx.Timestamp = day.Add(time.Duration(rng.IntN(5))*time.Hour + time.Duration(rng.IntN(3600))*time.Second)
		}
	}
	tx.Channel = "Online"
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

// Metrics is the confusion matrix of alerts against labels.
type Metrics struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

func score(b batch, flagged map[string]bool) Metrics {
	var m Metrics
	for _, tx := range b.txs {
		predicted, actual := flagged[tx.ID], b.fraud[tx.ID]
		switch {
		case predicted && actual:
			m.TruePositives++
		case predicted:
			m.FalsePositives++
		case actual:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}
	return m
}

func (m Metrics) Precision() float64 {
	if m.TruePositives+m.FalsePositives == 0 {
		return 0
	}
	return float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
}

func (m Metrics) Recall() float64 {
	if m.TruePositives+m.FalseNegatives == 0 {
		return 0
	}
	return float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
}

func (m Metrics) F1() float64 {
	p, r := m.Precision(), m.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
