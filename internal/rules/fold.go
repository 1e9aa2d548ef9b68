package rules

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Fold is the accumulated outcome of running a set of checks.
type Fold struct {
	// Score is the sum of every matched contribution.
	Score int

	// Reasons holds "<name>:<reason>" for each match, in evaluation order.
	Reasons []string

	// Results holds every verdict, matched or not.
	Results []domain.RuleResult
}

// Add folds a single verdict into f. Unmatched verdicts are kept in Results only.
func (f *Fold) Add(r domain.RuleResult) {
	f.Results = append(f.Results, r)
	if !r.Matched {
		return
	}
	f.Score += r.Score
	f.Reasons = append(f.Reasons, r.RuleName+":"+r.Reason)
}

// Merge appends other after f, keeping order.
func (f *Fold) Merge(other Fold) {
	f.Score += other.Score
	f.Reasons = append(f.Reasons, other.Reasons...)
	f.Results = append(f.Results, other.Results...)
}

// Evaluate runs every rule against tx without short-circuiting.
func Evaluate(tx *domain.Transaction, rules []Rule) Fold {
	f := Fold{Results: make([]domain.RuleResult, 0, len(rules))}
	for _, rule := range rules {
		f.Add(rule.Evaluate(tx))
	}
	return f
}
