package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// expressionEnv is the CEL environment shared by every ExpressionRule.
var expressionEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("account_id", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("has_timestamp", cel.BoolType),
	)
})

// ExpressionRule matches when a compiled CEL boolean expression evaluates to true.
type ExpressionRule struct {
	name       string
	expression string
	weight     int
	program    cel.Program
}

// NewExpressionRule compiles expr once. The expression must have type bool.
func NewExpressionRule(name, expr string, weight int) (*ExpressionRule, error) {
	env, err := expressionEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", name, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", name, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", name, err)
	}

	return &ExpressionRule{
		name:       name,
		expression: expr,
		weight:     weight,
		program:    program,
	}, nil
}

func (r *ExpressionRule) Name() string { return r.name }

// Expression returns the source expression.
func (r *ExpressionRule) Expression() string { return r.expression }

func (r *ExpressionRule) Evaluate(tx *domain.Transaction) domain.RuleResult {
	if tx == nil {
		return unmatched(r.name, ReasonNilTx)
	}

	hour := int64(-1)
	if tx.HasTimestamp() {
		hour = int64(tx.Timestamp.Hour())
	}

	out, _, err := r.program.Eval(map[string]any{
		"amount":        tx.Amount.InexactFloat64(),
		"currency":      strings.TrimSpace(tx.Currency),
		"merchant":      strings.TrimSpace(tx.Merchant),
		"location":      strings.TrimSpace(tx.Location),
		"channel":       strings.TrimSpace(tx.Channel),
		"account_id":    tx.AccountID,
		"hour":          hour,
		"has_timestamp": tx.HasTimestamp(),
	})
	if err != nil {
		return unmatched(r.name, "eval-error:"+err.Error())
	}

	if b, ok := out.(types.Bool); ok && bool(b) {
		return matched(r.name, r.weight, "Expression:"+r.expression)
	}
	return unmatched(r.name, ReasonOK)
}
