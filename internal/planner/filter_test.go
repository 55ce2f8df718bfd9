package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvellido/taskweave/internal/expressions"
	"github.com/rvellido/taskweave/pkg/schema"
)

func TestFilterItems_ByPriorityAndKind(t *testing.T) {
	engine := expressions.NewExprEngine()

	items := []schema.WorkItem{
		{ID: "a", Kind: schema.WorkItemTask, Priority: 80},
		{ID: "b", Kind: schema.WorkItemTask, Priority: 20},
		{ID: "c", Kind: schema.WorkItemStep, Priority: 80},
	}

	kept, err := FilterItems(context.Background(), engine, items, `priority >= 40 && kind == "task"`)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "a", kept[0].ID)
}

func TestFilterItems_EmptyExpressionKeepsAll(t *testing.T) {
	engine := expressions.NewExprEngine()

	items := []schema.WorkItem{{ID: "a"}, {ID: "b"}}
	kept, err := FilterItems(context.Background(), engine, items, "")
	require.NoError(t, err)
	assert.Len(t, kept, 2)
}

func TestFilterItems_HasDeadlineHelper(t *testing.T) {
	engine := expressions.NewExprEngine()

	deadline := anchor
	items := []schema.WorkItem{
		{ID: "due", Deadline: &deadline},
		{ID: "free"},
	}

	kept, err := FilterItems(context.Background(), engine, items, `has_deadline`)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "due", kept[0].ID)
}

func TestFilterItems_NonBoolRejected(t *testing.T) {
	engine := expressions.NewExprEngine()

	_, err := FilterItems(context.Background(), engine, []schema.WorkItem{{ID: "a"}}, `priority + 1`)
	require.Error(t, err)
}
