package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvellido/taskweave/pkg/schema"
)

func TestDocumentValidator_ValidDocument(t *testing.T) {
	dv, err := NewDocumentValidator()
	require.NoError(t, err)

	doc := &schema.Document{
		Workflows: []schema.Workflow{
			{ID: "w1", Name: "Onboard", Steps: []schema.WorkflowStep{
				{ID: "s1", Name: "Create account"},
				{ID: "s2", Name: "Grant access", DependsOn: []string{"s1"}},
			}},
		},
	}

	result := dv.Validate(doc)
	assert.True(t, result.Valid())
	assert.NoError(t, dv.ValidateDocument(doc))
}

func TestDocumentValidator_StructuralShortCircuits(t *testing.T) {
	dv, err := NewDocumentValidator()
	require.NoError(t, err)

	// Missing step name is structural; the graph stages must not run on it.
	doc := &schema.Document{
		Workflows: []schema.Workflow{
			{ID: "w1", Name: "Broken", Steps: []schema.WorkflowStep{
				{ID: "s1", DependsOn: []string{"ghost"}},
			}},
		},
	}

	result := dv.Validate(doc)
	require.False(t, result.Valid())
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, "/", result.Errors[0].Path)
}

func TestDocumentValidator_GraphErrorsCarryWorkflowPath(t *testing.T) {
	dv, err := NewDocumentValidator()
	require.NoError(t, err)

	doc := &schema.Document{
		Workflows: []schema.Workflow{
			{ID: "w1", Name: "Fine", Steps: []schema.WorkflowStep{
				{ID: "s1", Name: "Only"},
			}},
			{ID: "w2", Name: "Cyclic", Steps: []schema.WorkflowStep{
				{ID: "a", Name: "A", DependsOn: []string{"b"}},
				{ID: "b", Name: "B", DependsOn: []string{"a"}},
			}},
		},
	}

	result := dv.Validate(doc)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Path, "workflows[1]")
	assert.Equal(t, schema.ErrCodeCycleDetected, result.Errors[0].Code)
}
