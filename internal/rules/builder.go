package rules

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Defaults applied when a definition leaves a parameter unset.
const (
	DefaultAmountWeight     = 30
	DefaultGeoWeight        = 25
	DefaultTimeWindowWeight = 20
	DefaultChannelWeight    = 15
	DefaultMerchantWeight   = 25
	DefaultExpressionWeight = 10

	DefaultStartHour = 0
	DefaultEndHour   = 5
)

// DefaultAmountThreshold is the amount_threshold default.
var DefaultAmountThreshold = decimal.NewFromInt(50000)

var defaultNames = map[string]string{
	domain.RuleTypeAmountThreshold:   "HighAmountRule",
	domain.RuleTypeGeoRisk:           "GeoLocationRule",
	domain.RuleTypeTimeWindow:        "NightTimeRule",
	domain.RuleTypeChannelRisk:       "ChannelRiskRule",
	domain.RuleTypeMerchantBlocklist: "RiskyMerchantRule",
}

// Build constructs one rule per enabled definition, in declaration order.
// Any invalid definition fails the whole build with ErrInvalidConfig.
func Build(cfg domain.RulesConfig) ([]Rule, error) {
	rules := make([]Rule, 0, len(cfg.Definitions))
	seen := make(map[string]int, len(cfg.Definitions))

	for i, def := range cfg.Definitions {
		if !def.IsEnabled() {
			continue
		}

		rule, err := buildRule(def, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: rules[%d]: %v", domain.ErrInvalidConfig, i, err)
		}

		if prev, dup := seen[rule.Name()]; dup {
			return nil, fmt.Errorf("%w: rules[%d]: name %q already used by rules[%d]",
				domain.ErrInvalidConfig, i, rule.Name(), prev)
		}
		seen[rule.Name()] = i
		rules = append(rules, rule)
	}

	return rules, nil
}

func buildRule(def domain.RuleDefinition, cfg domain.RulesConfig) (Rule, error) {
	kind := strings.ToLower(strings.TrimSpace(def.Type))

	name := strings.TrimSpace(def.Name)
	if name == "" {
		name = defaultNames[kind]
	}

	switch kind {
	case domain.RuleTypeAmountThreshold:
		weight, err := weightOr(def, DefaultAmountWeight)
		if err != nil {
			return nil, err
		}
		threshold := DefaultAmountThreshold
		if t := strings.TrimSpace(def.Threshold); t != "" {
			threshold, err = decimal.NewFromString(t)
			if err != nil {
				return nil, fmt.Errorf("invalid threshold %q: %v", def.Threshold, err)
			}
			if threshold.IsNegative() {
				return nil, fmt.Errorf("threshold must not be negative, got %s", threshold)
			}
		}
		return NewAmountThresholdRule(name, threshold, weight), nil

	case domain.RuleTypeGeoRisk:
		weight, err := weightOr(def, DefaultGeoWeight)
		if err != nil {
			return nil, err
		}
		return NewGeoRiskRule(name, cfg.RiskyLocations, weight), nil

	case domain.RuleTypeTimeWindow:
		weight, err := weightOr(def, DefaultTimeWindowWeight)
		if err != nil {
			return nil, err
		}
		start, err := hourOr(def.StartHour, DefaultStartHour, "startHour")
		if err != nil {
			return nil, err
		}
		end, err := hourOr(def.EndHour, DefaultEndHour, "endHour")
		if err != nil {
			return nil, err
		}
		return NewTimeWindowRule(name, start, end, weight), nil

	case domain.RuleTypeChannelRisk:
		weight, err := weightOr(def, DefaultChannelWeight)
		if err != nil {
			return nil, err
		}
		return NewChannelRiskRule(name, weight), nil

	case domain.RuleTypeMerchantBlocklist:
		weight, err := weightOr(def, DefaultMerchantWeight)
		if err != nil {
			return nil, err
		}
		return NewMerchantBlocklistRule(name, cfg.RiskyMerchants, weight), nil

	case domain.RuleTypeExpression:
		if name == "" {
			return nil, fmt.Errorf("expression rules require a name")
		}
		if strings.TrimSpace(def.Expression) == "" {
			return nil, fmt.Errorf("rule %s: expression is required", name)
		}
		weight, err := weightOr(def, DefaultExpressionWeight)
		if err != nil {
			return nil, err
		}
		return NewExpressionRule(name, def.Expression, weight)

	default:
		return nil, fmt.Errorf("unknown rule type %q", def.Type)
	}
}

func weightOr(def domain.RuleDefinition, fallback int) (int, error) {
	if def.Weight == nil {
		return fallback, nil
	}
	if *def.Weight < 0 {
		return 0, fmt.Errorf("weight must not be negative, got %d", *def.Weight)
	}
	return *def.Weight, nil
}

func hourOr(v *int, fallback int, field string) (int, error) {
	if v == nil {
		return fallback, nil
	}
	if *v < 0 || *v > 23 {
		return 0, fmt.Errorf("%s must be within 0-23, got %d", field, *v)
	}
	return *v, nil
}
