package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single financial transaction submitted for analysis.
// It is treated as immutable once constructed.
type Transaction struct {
	ID        string `json:"transactionId"`
	AccountID string `json:"accountId"`

	// Financial details
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	// Timestamp is when the transaction occurred, not when it was ingested.
	// The zero value means the source did not supply one.
	Timestamp time.Time `json:"timestamp"`

	Merchant string `json:"merchant"`
	Location string `json:"location"`
	Channel  string `json:"channel"`
}

// HasTimestamp reports whether the transaction carries an event time.
func (t *Transaction) HasTimestamp() bool {
	return t != nil && !t.Timestamp.IsZero()
}
