package schema

import "time"

// WorkItemKind enumerates the origins of a work item.
type WorkItemKind string

const (
	WorkItemTask      WorkItemKind = "task"
	WorkItemStep      WorkItemKind = "workflow_step"
	WorkItemAsyncWait WorkItemKind = "async_wait"
)

// WorkItem is the uniform schedulable unit produced by the normalizer.
// Items are rebuilt from current task/workflow state on every scheduling
// pass and never mutated by the engine; derived values come back on new
// structures.
type WorkItem struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Kind                WorkItemKind `json:"kind"`
	DurationMins        int          `json:"duration_mins"`
	Priority            int          `json:"priority"`
	Deadline            *time.Time   `json:"deadline,omitempty"`
	Dependencies        []string     `json:"dependencies,omitempty"`
	IsAsyncTrigger      bool         `json:"is_async_trigger,omitempty"`
	AsyncWaitMins       int          `json:"async_wait_mins,omitempty"`
	CognitiveComplexity int          `json:"cognitive_complexity,omitempty"`
	Condition           string       `json:"condition,omitempty"`

	// SourceID points at the originating task or workflow; Source carries
	// the caller's own record through a scheduling pass untouched.
	SourceID string `json:"source_id,omitempty"`
	Source   any    `json:"-"`
}

// NodeID satisfies the graph node contract.
func (w WorkItem) NodeID() string { return w.ID }

// NodeDependencies satisfies the graph node contract.
func (w WorkItem) NodeDependencies() []string { return w.Dependencies }

// NodeWeight is the item's contribution to a dependency chain: its own
// duration plus the external wait when the item is an async trigger.
func (w WorkItem) NodeWeight() int {
	weight := w.DurationMins
	if w.IsAsyncTrigger {
		weight += w.AsyncWaitMins
	}
	return weight
}

// Readiness reports whether a work item can start now and, when it cannot,
// why. MissingDependencies lists every unmet hard dependency, not just the
// first one found.
type Readiness struct {
	CanSchedule         bool       `json:"can_schedule"`
	EarliestStart       *time.Time `json:"earliest_start,omitempty"`
	WaitingOnAsync      bool       `json:"waiting_on_async,omitempty"`
	GuardHeld           bool       `json:"guard_held,omitempty"`
	MissingDependencies []string   `json:"missing_dependencies,omitempty"`
}
