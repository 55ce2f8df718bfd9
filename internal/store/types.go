package store

import (
	"encoding/json"
	"time"

	"github.com/rvellido/taskweave/pkg/schema"
)

// WorkSession groups scheduling activity between a start and an end. The
// planner's completion and async state is scoped to a session, so yesterday's
// finished items do not satisfy today's dependencies unless carried over.
type WorkSession struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Activity types recorded in the session log.
const (
	ActivityItemCompleted = "item_completed"
	ActivityItemReopened  = "item_reopened"
	ActivityAsyncStarted  = "async_started"
	ActivitySessionNote   = "session_note"
)

// ActivityEntry is an immutable entry in the session activity log. Sequence
// increases monotonically per session.
type ActivityEntry struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	ItemID    string          `json:"item_id,omitempty"`
	Type      string          `json:"activity_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// AsyncStartedPayload is the payload of an async_started entry.
type AsyncStartedPayload struct {
	WaitMins int `json:"wait_mins"`
}

// SessionProgress is the planner-facing state reconstructed from a session's
// activity log.
type SessionProgress struct {
	Completed     map[string]bool      `json:"completed"`
	AsyncEndTimes map[string]time.Time `json:"async_end_times"`
}

// --- Filter and update types ---

// TaskFilter specifies criteria for listing tasks.
type TaskFilter struct {
	Completed *bool      `json:"completed,omitempty"`
	DueBefore *time.Time `json:"due_before,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// TaskUpdate specifies mutable fields of a task. Nil pointers leave the
// stored value untouched; Dependencies replaces the whole list when non-nil.
type TaskUpdate struct {
	Name                *string    `json:"name,omitempty"`
	Description         *string    `json:"description,omitempty"`
	Importance          *int       `json:"importance,omitempty"`
	Urgency             *int       `json:"urgency,omitempty"`
	DurationMins        *int       `json:"duration_mins,omitempty"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	ClearDeadline       bool       `json:"clear_deadline,omitempty"`
	Dependencies        []string   `json:"dependencies,omitempty"`
	IsAsyncTrigger      *bool      `json:"is_async_trigger,omitempty"`
	AsyncWaitMins       *int       `json:"async_wait_mins,omitempty"`
	CognitiveComplexity *int       `json:"cognitive_complexity,omitempty"`
	Recurrence          *string    `json:"recurrence,omitempty"`
	Completed           *bool      `json:"completed,omitempty"`
}

// WorkflowFilter specifies criteria for listing workflows.
type WorkflowFilter struct {
	Completed *bool `json:"completed,omitempty"`
	Limit     int   `json:"limit,omitempty"`
	Offset    int   `json:"offset,omitempty"`
}

// WorkflowUpdate specifies mutable fields of a workflow. Steps replaces the
// whole step list when non-nil, so dependency edits persist atomically.
type WorkflowUpdate struct {
	Name      *string               `json:"name,omitempty"`
	Steps     []schema.WorkflowStep `json:"steps,omitempty"`
	Completed *bool                 `json:"completed,omitempty"`
}

// SessionFilter specifies criteria for listing work sessions.
type SessionFilter struct {
	Active *bool `json:"active,omitempty"`
	Limit  int   `json:"limit,omitempty"`
}
