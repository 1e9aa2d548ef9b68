package domain

// RuleResult is the verdict of a single rule against a single transaction.
type RuleResult struct {
	RuleName string `json:"ruleName"`
	Matched  bool   `json:"matched"`

	// Score is the contribution to the total. Only meaningful when Matched.
	Score int `json:"score"`

	// Reason is always set, including for non-matches.
	Reason string `json:"reason"`
}

// Rule types understood by the rule set builder.
const (
	RuleTypeAmountThreshold   = "amount_threshold"
	RuleTypeGeoRisk           = "geo_risk"
	RuleTypeTimeWindow        = "time_window"
	RuleTypeChannelRisk       = "channel_risk"
	RuleTypeMerchantBlocklist = "merchant_blocklist"
	RuleTypeExpression        = "expression"
)

// RuleDefinition configures one rule. Unset optional fields fall back to the
// per-type defaults applied by the rule set builder.
type RuleDefinition struct {
	Type    string `mapstructure:"type" json:"type"`
	Name    string `mapstructure:"name" json:"name,omitempty"`
	Enabled *bool  `mapstructure:"enabled" json:"enabled,omitempty"`
	Weight  *int   `mapstructure:"weight" json:"weight,omitempty"`

	// amount_threshold
	Threshold string `mapstructure:"threshold" json:"threshold,omitempty"`

	// time_window, hours 0-23, start inclusive and end exclusive
	StartHour *int `mapstructure:"startHour" json:"startHour,omitempty"`
	EndHour   *int `mapstructure:"endHour" json:"endHour,omitempty"`

	// expression, a CEL boolean expression
	Expression string `mapstructure:"expression" json:"expression,omitempty"`
}

// IsEnabled reports whether the definition is active. Rules are enabled unless
// explicitly switched off.
func (d RuleDefinition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// RulesConfig is the immutable input of the rule set builder.
type RulesConfig struct {
	Definitions    []RuleDefinition
	RiskyLocations []string
	RiskyMerchants []string
}

// DefaultRuleDefinitions returns the stock rule set in evaluation order.
func DefaultRuleDefinitions() []RuleDefinition {
	return []RuleDefinition{
		{Type: RuleTypeAmountThreshold},
		{Type: RuleTypeGeoRisk},
		{Type: RuleTypeTimeWindow},
		{Type: RuleTypeChannelRisk},
		{Type: RuleTypeMerchantBlocklist},
	}
}
