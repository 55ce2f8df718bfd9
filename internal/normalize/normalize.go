// Package normalize converts heterogeneous domain records (standalone tasks,
// workflow steps) into the uniform work-item shape the planner consumes.
// Normalization performs no validation: invalid or cyclic input passes
// through for the validation pass or the planner's warning channel to catch.
package normalize

import (
	"fmt"
	"time"

	"github.com/rvellido/taskweave/pkg/schema"
)

// Priority defaults. Task priority is importance × urgency on a 1-10 scale;
// absent scores default to 5, so an unscored task lands at 25. Steps without
// their own scores get a flat 50 so workflow work outranks unscored tasks.
const (
	DefaultImportance   = 5
	DefaultUrgency      = 5
	DefaultStepPriority = 50
)

// Options configures a normalization pass.
type Options struct {
	// Now anchors recurrence resolution. Zero means time.Now in UTC.
	Now time.Time

	// NextOccurrence resolves a recurrence expression to its next firing
	// after from. When set, a recurring task without an explicit deadline
	// gets the next occurrence as its derived deadline. Nil disables
	// recurrence resolution.
	NextOccurrence func(expr string, from time.Time) (time.Time, error)
}

// WorkItems produces one work item per incomplete task and per incomplete
// step of each incomplete workflow. Returned items are freshly built on every
// call; inputs are never mutated. Warnings report recurrence expressions that
// could not be resolved.
func WorkItems(tasks []schema.Task, workflows []schema.Workflow, opts Options) ([]schema.WorkItem, []string) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var items []schema.WorkItem
	var warnings []string

	for i := range tasks {
		task := &tasks[i]
		if task.Completed {
			continue
		}
		item, warn := taskItem(task, now, opts.NextOccurrence)
		if warn != "" {
			warnings = append(warnings, warn)
		}
		items = append(items, item)
	}

	for i := range workflows {
		wf := &workflows[i]
		if wf.Completed {
			continue
		}
		for j := range wf.Steps {
			step := &wf.Steps[j]
			if step.PercentComplete >= 100 {
				continue
			}
			items = append(items, stepItem(wf, j))
		}
	}

	return items, warnings
}

func taskItem(task *schema.Task, now time.Time, next func(string, time.Time) (time.Time, error)) (schema.WorkItem, string) {
	importance := task.Importance
	if importance == 0 {
		importance = DefaultImportance
	}
	urgency := task.Urgency
	if urgency == 0 {
		urgency = DefaultUrgency
	}

	deadline := task.Deadline
	warning := ""
	if deadline == nil && task.Recurrence != "" && next != nil {
		occurrence, err := next(task.Recurrence, now)
		if err != nil {
			warning = fmt.Sprintf("task %q has unresolvable recurrence %q: %v", task.Name, task.Recurrence, err)
		} else {
			deadline = &occurrence
		}
	}

	return schema.WorkItem{
		ID:                  task.ID,
		Name:                task.Name,
		Kind:                schema.WorkItemTask,
		DurationMins:        task.DurationMins,
		Priority:            importance * urgency,
		Deadline:            deadline,
		Dependencies:        append([]string(nil), task.Dependencies...),
		IsAsyncTrigger:      task.IsAsyncTrigger,
		AsyncWaitMins:       task.AsyncWaitMins,
		CognitiveComplexity: task.CognitiveComplexity,
		SourceID:            task.ID,
		Source:              task,
	}, warning
}

func stepItem(wf *schema.Workflow, index int) schema.WorkItem {
	step := &wf.Steps[index]

	priority := DefaultStepPriority
	if step.Importance > 0 && step.Urgency > 0 {
		priority = step.Importance * step.Urgency
	}

	deps := append([]string(nil), step.DependsOn...)
	// Implicit sequential edge: every non-first step also waits on its
	// immediate predecessor in the workflow, whether or not the author
	// listed it.
	if index > 0 {
		prev := wf.Steps[index-1].ID
		if !contains(deps, prev) {
			deps = append(deps, prev)
		}
	}

	return schema.WorkItem{
		ID:             step.ID,
		Name:           step.Name,
		Kind:           schema.WorkItemStep,
		DurationMins:   step.DurationMins,
		Priority:       priority,
		Deadline:       step.Deadline,
		Dependencies:   deps,
		IsAsyncTrigger: step.IsAsyncTrigger,
		AsyncWaitMins:  step.AsyncWaitMins,
		Condition:      step.Condition,
		SourceID:       wf.ID,
		Source:         wf,
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
