// Package detection scores transactions and turns risky ones into alerts.
package detection

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Thresholds are the score cutoffs for the MEDIUM and HIGH tiers.
type Thresholds struct {
	Medium int
	High   int
}

// ThresholdsFrom converts the detection configuration.
func ThresholdsFrom(cfg domain.DetectionConfig) Thresholds {
	return Thresholds{Medium: cfg.MediumCutoff, High: cfg.HighCutoff}
}

// Validate checks High >= Medium >= 0.
func (t Thresholds) Validate() error {
	if t.Medium < 0 || t.High < t.Medium {
		return fmt.Errorf("%w: cutoffs must satisfy high >= medium >= 0 (got medium=%d high=%d)",
			domain.ErrInvalidConfig, t.Medium, t.High)
	}
	return nil
}

// Classify maps a score to its tier. It does not validate the cutoffs.
func (t Thresholds) Classify(score int) domain.RiskLevel {
	switch {
	case score >= t.High:
		return domain.RiskHigh
	case score >= t.Medium:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
