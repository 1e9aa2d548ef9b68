// Package rules provides the fraud rules, the rule set builder and the
// scoring fold that runs them.
package rules

import (
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Rule is a predicate over a single transaction. Implementations hold only
// construction-time parameters and are safe for concurrent use.
type Rule interface {
	Name() string
	Evaluate(tx *domain.Transaction) domain.RuleResult
}

// Reasons reported for non-matching evaluations.
const (
	ReasonOK          = "ok"
	ReasonNilTx       = "txn-null"
	ReasonNoLocation  = "no-location"
	ReasonNoTimestamp = "no-timestamp"
	ReasonNoChannel   = "no-channel"
	ReasonNoMerchant  = "no-merchant"
)

func matched(name string, score int, reason string) domain.RuleResult {
	return domain.RuleResult{RuleName: name, Matched: true, Score: score, Reason: reason}
}

func unmatched(name, reason string) domain.RuleResult {
	return domain.RuleResult{RuleName: name, Reason: reason}
}

// AmountThresholdRule matches when the amount is at or above the threshold.
type AmountThresholdRule struct {
	name      string
	threshold decimal.Decimal
	weight    int
}

// NewAmountThresholdRule creates an AmountThresholdRule.
func NewAmountThresholdRule(name string, threshold decimal.Decimal, weight int) *AmountThresholdRule {
	return &AmountThresholdRule{name: name, threshold: threshold, weight: weight}
}

func (r *AmountThresholdRule) Name() string { return r.name }

func (r *AmountThresholdRule) Evaluate(tx *domain.Transaction) domain.RuleResult {
	if tx == nil {
		return unmatched(r.name, ReasonNilTx)
	}
	if tx.Amount.GreaterThanOrEqual(r.threshold) {
		return matched(r.name, r.weight, "HighAmount:"+tx.Amount.String())
	}
	return unmatched(r.name, ReasonOK)
}

// GeoRiskRule matches transactions from a configured set of risky locations.
type GeoRiskRule struct {
	name      string
	locations map[string]struct{}
	weight    int
}

// NewGeoRiskRule creates a GeoRiskRule. Locations are compared trimmed and
// case-insensitively.
func NewGeoRiskRule(name string, locations []string, weight int) *GeoRiskRule {
	return &GeoRiskRule{name: name, locations: normalizeSet(locations), weight: weight}
}

func (r *GeoRiskRule) Name() string { return r.name }

func (r *GeoRiskRule) Evaluate(tx *domain.Transaction) domain.RuleResult {
	if tx == nil {
		return unmatched(r.name, ReasonNilTx)
	}
	loc := strings.TrimSpace(tx.Location)
	if loc == "" {
		return unmatched(r.name, ReasonNoLocation)
	}
	if _, ok := r.locations[strings.ToUpper(loc)]; ok {
		return matched(r.name, r.weight, "RiskCountry:"+loc)
	}
	return unmatched(r.name, ReasonOK)
}

// TimeWindowRule matches transactions whose hour falls in [start, end).
// When start > end the window wraps midnight.
type TimeWindowRule struct {
	name      string
	startHour int
	endHour   int
	weight    int
}

// NewTimeWindowRule creates a TimeWindowRule. Hours are 0-23.
func NewTimeWindowRule(name string, startHour, endHour, weight int) *TimeWindowRule {
	return &TimeWindowRule{name: name, startHour: startHour, endHour: endHour, weight: weight}
}

func (r *TimeWindowRule) Name() string { return r.name }

func (r *TimeWindowRule) Evaluate(tx *domain.Transaction) domain.RuleResult {
	if tx == nil {
		return unmatched(r.name, ReasonNilTx)
	}
	if !tx.HasTimestamp() {
		return unmatched(r.name, ReasonNoTimestamp)
	}
	hour := tx.Timestamp.Hour()
	if r.inWindow(hour) {
		return matched(r.name, r.weight, "NightTimeHour:"+strconv.Itoa(hour))
	}
	return unmatched(r.name, ReasonOK)
}

func (r *TimeWindowRule) inWindow(hour int) bool {
	if r.startHour <= r.endHour {
		return hour >= r.startHour && hour < r.endHour
	}
	return hour >= r.startHour || hour < r.endHour
}

// ChannelRiskRule matches online transactions.
type ChannelRiskRule struct {
	name   string
	weight int
}

// NewChannelRiskRule creates a ChannelRiskRule.
func NewChannelRiskRule(name string, weight int) *ChannelRiskRule {
	return &ChannelRiskRule{name: name, weight: weight}
}

func (r *ChannelRiskRule) Name() string { return r.name }

func (r *ChannelRiskRule) Evaluate(tx *domain.Transaction) domain.RuleResult {
	if tx == nil {
		return unmatched(r.name, ReasonNilTx)
	}
	ch := strings.TrimSpace(tx.Channel)
	if ch == "" {
		return unmatched(r.name, ReasonNoChannel)
	}
	if strings.EqualFold(ch, "online") {
		return matched(r.name, r.weight, "Channel:ONLINE")
	}
	return unmatched(r.name, ReasonOK)
}

// MerchantBlocklistRule matches merchants on a configured block list.
type MerchantBlocklistRule struct {
	name      string
	merchants map[string]struct{}
	weight    int
}

// NewMerchantBlocklistRule creates a MerchantBlocklistRule. The block list is
// normalised to upper case once here.
func NewMerchantBlocklistRule(name string, merchants []string, weight int) *MerchantBlocklistRule {
	return &MerchantBlocklistRule{name: name, merchants: normalizeSet(merchants), weight: weight}
}

func (r *MerchantBlocklistRule) Name() string { return r.name }

func (r *MerchantBlocklistRule) Evaluate(tx *domain.Transaction) domain.RuleResult {
	if tx == nil {
		return unmatched(r.name, ReasonNilTx)
	}
	merchant := strings.TrimSpace(tx.Merchant)
	if merchant == "" {
		return unmatched(r.name, ReasonNoMerchant)
	}
	if _, ok := r.merchants[strings.ToUpper(merchant)]; ok {
		return matched(r.name, r.weight, "RiskyMerchant:"+merchant)
	}
	return unmatched(r.name, ReasonOK)
}

func normalizeSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[strings.ToUpper(v)] = struct{}{}
	}
	return set
}
