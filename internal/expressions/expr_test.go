package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvellido/taskweave/pkg/schema"
)

func TestExpr_FilterStyleExpression(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `priority >= 40 && kind == "task"`, map[string]any{
		"priority": 50,
		"kind":     "task",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExpr_PriorityFormula(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `importance * urgency + 10`, map[string]any{
		"importance": 7,
		"urgency":    8,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 66, out)
}

func TestExpr_UndefinedVariablesAllowed(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `deadline == nil`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExpr_EmptyExpression(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)

	werr, ok := err.(*schema.WeaveError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, werr.Code)
}

func TestExpr_CompileErrorIsValidation(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), `1 +`, map[string]any{})
	require.Error(t, err)

	werr, ok := err.(*schema.WeaveError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, werr.Code)
}

func TestExpr_CacheReuse(t *testing.T) {
	e := NewExprEngine()

	for range 3 {
		out, err := e.Evaluate(context.Background(), `count * 2`, map[string]any{"count": 4})
		require.NoError(t, err)
		assert.EqualValues(t, 8, out)
	}
	assert.Len(t, e.cache, 1)
}
