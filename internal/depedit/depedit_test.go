package depedit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvellido/taskweave/pkg/schema"
)

func step(id, name string, deps ...string) schema.WorkflowStep {
	return schema.WorkflowStep{ID: id, Name: name, DependsOn: deps}
}

func stepByID(t *testing.T, steps []schema.WorkflowStep, id string) schema.WorkflowStep {
	t.Helper()
	for _, s := range steps {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("step %q not in result", id)
	return schema.WorkflowStep{}
}

func TestApply_AddDependency(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Design"),
		step("s2", "Build"),
	}

	res, err := Apply(steps, schema.DependencyChangeRequest{
		Target:          "Build",
		AddDependencies: []string{"Design"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, stepByID(t, res.Steps, "s2").DependsOn)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, schema.ChangeApplied, res.Changes[0].Outcome)
	assert.Equal(t, schema.ChangeAddDependency, res.Changes[0].Kind)
	assert.Equal(t, "s1", res.Changes[0].StepID)
}

func TestApply_NameMatchingIsCaseInsensitiveAndTrimmed(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Design"),
		step("s2", "Build"),
	}

	res, err := Apply(steps, schema.DependencyChangeRequest{
		Target:          "  build ",
		AddDependencies: []string{"DESIGN"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, stepByID(t, res.Steps, "s2").DependsOn)
}

func TestApply_IsIdempotent(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Design"),
		step("s2", "Build"),
	}
	req := schema.DependencyChangeRequest{
		Target:          "Build",
		AddDependencies: []string{"Design"},
	}

	first, err := Apply(steps, req)
	require.NoError(t, err)

	second, err := Apply(first.Steps, req)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, stepByID(t, second.Steps, "s2").DependsOn)
	require.Len(t, second.Changes, 1)
	assert.Equal(t, schema.ChangeAlreadyPresent, second.Changes[0].Outcome)
}

func TestApply_RemoveDependency(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Design"),
		step("s2", "Build", "s1"),
	}

	res, err := Apply(steps, schema.DependencyChangeRequest{
		Target:             "Build",
		RemoveDependencies: []string{"Design"},
	})
	require.NoError(t, err)

	assert.Empty(t, stepByID(t, res.Steps, "s2").DependsOn)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, schema.ChangeRemoved, res.Changes[0].Outcome)
}

func TestApply_RemoveAbsentDependencyReportsNotPresent(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Design"),
		step("s2", "Build"),
	}

	res, err := Apply(steps, schema.DependencyChangeRequest{
		Target:             "Build",
		RemoveDependencies: []string{"Design"},
	})
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, schema.ChangeNotPresent, res.Changes[0].Outcome)
}

func TestApply_ReverseEdges(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Design"),
		step("s2", "Build"),
		step("s3", "Ship", "s2"),
	}

	res, err := Apply(steps, schema.DependencyChangeRequest{
		Target:           "Design",
		AddDependents:    []string{"Build"},
		RemoveDependents: []string{"Ship"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, stepByID(t, res.Steps, "s2").DependsOn,
		"Build now waits on Design")
	assert.Equal(t, []string{"s2"}, stepByID(t, res.Steps, "s3").DependsOn,
		"Ship never waited on Design, its other edges survive")

	require.Len(t, res.Changes, 2)
	assert.Equal(t, schema.ChangeApplied, res.Changes[0].Outcome)
	assert.Equal(t, schema.ChangeNotPresent, res.Changes[1].Outcome)
}

func TestApply_UnresolvedNamesAreReportedNotDropped(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Design"),
		step("s2", "Build"),
	}

	res, err := Apply(steps, schema.DependencyChangeRequest{
		Target:          "Build",
		AddDependencies: []string{"Design", "Deploy to prod"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, stepByID(t, res.Steps, "s2").DependsOn,
		"the resolvable edit still lands")
	assert.Equal(t, []string{"Deploy to prod"}, res.Unresolved)

	require.Len(t, res.Changes, 2)
	assert.Equal(t, schema.ChangeApplied, res.Changes[0].Outcome)
	assert.Equal(t, schema.ChangeNotFound, res.Changes[1].Outcome)
}

func TestApply_UnknownTargetFails(t *testing.T) {
	steps := []schema.WorkflowStep{step("s1", "Design")}

	_, err := Apply(steps, schema.DependencyChangeRequest{Target: "Bild"})
	require.Error(t, err)

	var werr *schema.WeaveError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.ErrCodeNotFound, werr.Code)
}

func TestApply_InputNotMutated(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Design"),
		step("s2", "Build", "s1"),
	}

	_, err := Apply(steps, schema.DependencyChangeRequest{
		Target:             "Build",
		RemoveDependencies: []string{"Design"},
		AddDependencies:    []string{"Design"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, steps[1].DependsOn)
}

func TestApply_DuplicateNamesResolveToFirst(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("s1", "Review"),
		step("s2", "Review"),
		step("s3", "Merge"),
	}

	res, err := Apply(steps, schema.DependencyChangeRequest{
		Target:          "Merge",
		AddDependencies: []string{"Review"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, stepByID(t, res.Steps, "s3").DependsOn)
}

func TestWouldCreateCircularDependency(t *testing.T) {
	steps := []schema.WorkflowStep{
		step("a", "A"),
		step("b", "B", "a"),
		step("c", "C", "b"),
	}

	assert.True(t, WouldCreateCircularDependency("a", "c", steps),
		"c already reaches a, so a waiting on c closes a loop")
	assert.True(t, WouldCreateCircularDependency("a", "a", steps))
	assert.False(t, WouldCreateCircularDependency("c", "a", steps),
		"deepening an existing chain is fine")
}
