package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoJQ_ReshapeExport(t *testing.T) {
	e := NewGoJQEngine()

	// A typical import transform: map a third-party export into tasks.
	input := map[string]any{
		"items": []any{
			map[string]any{"key": "T-1", "summary": "Fix login", "mins": 30.0},
			map[string]any{"key": "T-2", "summary": "Ship release", "mins": 90.0},
		},
	}

	out, err := e.Run(context.Background(),
		`{tasks: [.items[] | {id: .key, name: .summary, duration_mins: .mins}]}`,
		input)
	require.NoError(t, err)

	doc, ok := out.(map[string]any)
	require.True(t, ok)
	tasks, ok := doc["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 2)

	first := tasks[0].(map[string]any)
	assert.Equal(t, "T-1", first["id"])
	assert.Equal(t, "Fix login", first["name"])
}

func TestGoJQ_MultipleOutputsCollected(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Run(context.Background(), `.items[]`, map[string]any{
		"items": []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestGoJQ_NoOutput(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Run(context.Background(), `.items[]?`, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQ_ParseError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Run(context.Background(), `.items[`, map[string]any{})
	require.Error(t, err)
}
