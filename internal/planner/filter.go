package planner

import (
	"context"

	"github.com/rvellido/taskweave/internal/expressions"
	"github.com/rvellido/taskweave/pkg/schema"
)

// FilterItems keeps the items for which the expr-lang expression evaluates to
// true. The expression sees each item's fields as top-level variables, e.g.
// `priority >= 40 && kind == "task"` or `duration_mins < 30`.
func FilterItems(ctx context.Context, engine *expressions.ExprEngine, items []schema.WorkItem, expression string) ([]schema.WorkItem, error) {
	if expression == "" {
		out := make([]schema.WorkItem, len(items))
		copy(out, items)
		return out, nil
	}

	var kept []schema.WorkItem
	for _, item := range items {
		out, err := engine.Evaluate(ctx, expression, filterEnv(item))
		if err != nil {
			return nil, err
		}
		pass, ok := out.(bool)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"filter %q produced %T, want bool", expression, out)
		}
		if pass {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

// filterEnv is itemEnv plus fields only meaningful for filtering.
func filterEnv(item schema.WorkItem) map[string]any {
	env := itemEnv(item)
	env["source_id"] = item.SourceID
	env["dependency_count"] = len(item.Dependencies)
	env["has_deadline"] = item.Deadline != nil
	return env
}
