package validation

import (
	"fmt"
	"strings"

	"github.com/rvellido/taskweave/internal/graph"
	"github.com/rvellido/taskweave/pkg/schema"
)

// ValidateWorkflowDependencies is the gate run before persisting any workflow
// whose steps were created or edited. It checks, in order:
//
//  1. Orphans: every depends_on ID must exist among the sibling steps.
//  2. Cycles: the sibling set must induce no dependency cycle.
//
// All orphan errors come before all cycle errors; the ordering is part of the
// contract so callers can assert on it. Errors are human-readable strings,
// never panics or thrown failures.
func ValidateWorkflowDependencies(steps []schema.WorkflowStep) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]bool, len(steps))
	names := make(map[string]string, len(steps))
	for _, s := range steps {
		ids[s.ID] = true
		names[s.ID] = s.Name
	}

	// Orphan check.
	for i, s := range steps {
		for j, dep := range s.DependsOn {
			if !ids[dep] {
				result.AddError(
					fmt.Sprintf("steps[%d].depends_on[%d]", i, j),
					schema.ErrCodeValidation,
					fmt.Sprintf("Step %q depends on non-existent step", s.Name),
				)
			}
		}
	}

	// Cycle check.
	adj := graph.BuildAdjacency(steps)
	report := graph.DetectCycles(adj)
	for _, cycle := range report.Cycles {
		result.AddError("steps", schema.ErrCodeCycleDetected, cycleMessage(cycle, names))
	}

	return result
}

// ValidateTaskDependencies applies the same orphan and cycle gates to the
// standalone task pool.
func ValidateTaskDependencies(tasks []schema.Task) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]bool, len(tasks))
	names := make(map[string]string, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = true
		names[t.ID] = t.Name
	}

	for i, t := range tasks {
		for j, dep := range t.Dependencies {
			if !ids[dep] {
				result.AddError(
					fmt.Sprintf("tasks[%d].dependencies[%d]", i, j),
					schema.ErrCodeValidation,
					fmt.Sprintf("Task %q depends on non-existent task", t.Name),
				)
			}
		}
	}

	adj := graph.NewAdjacency()
	for _, t := range tasks {
		adj.Add(t.ID, t.Dependencies)
	}
	report := graph.DetectCycles(adj)
	for _, cycle := range report.Cycles {
		result.AddError("tasks", schema.ErrCodeCycleDetected, cycleMessage(cycle, names))
	}

	return result
}

// cycleMessage renders a cycle as "Circular dependency detected: A → B → A",
// translating IDs back to names. IDs without a known name fall back to the
// raw ID.
func cycleMessage(cycle []string, names map[string]string) string {
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		if name, ok := names[id]; ok && name != "" {
			parts[i] = name
		} else {
			parts[i] = id
		}
	}
	return "Circular dependency detected: " + strings.Join(parts, " → ")
}
