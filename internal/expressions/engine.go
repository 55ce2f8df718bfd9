package expressions

import "context"

// Engine evaluates expressions over scheduling data.
// Three implementations: CEL (readiness guards), Expr (work-item filters and
// priority formulas), GoJQ (import transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
