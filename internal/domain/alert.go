package domain

import (
	"time"
)

// RiskLevel is the discrete tier a scored transaction is classified into.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskLevels lists every tier from lowest to highest.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// Rank orders tiers so that LOW < MEDIUM < HIGH. Unknown values rank below LOW.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return -1
	}
}

// FraudAlert is the record produced for every transaction classified above LOW.
type FraudAlert struct {
	// ID is assigned by the alert store when the alert is persisted.
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	AccountID     string    `json:"accountId"`
	Score         int       `json:"score"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"createdAt"`
}
