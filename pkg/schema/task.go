package schema

import "time"

// Task is a standalone unit of work owned by the caller's persistence layer.
// Importance and urgency are scored 1-10; zero means unset.
type Task struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	Importance          int        `json:"importance,omitempty"`
	Urgency             int        `json:"urgency,omitempty"`
	DurationMins        int        `json:"duration_mins"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	Dependencies        []string   `json:"dependencies,omitempty"`
	IsAsyncTrigger      bool       `json:"is_async_trigger,omitempty"`
	AsyncWaitMins       int        `json:"async_wait_mins,omitempty"`
	CognitiveComplexity int        `json:"cognitive_complexity,omitempty"`
	Recurrence          string     `json:"recurrence,omitempty"` // cron expression
	Completed           bool       `json:"completed"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Workflow is an ordered multi-step unit of work.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Steps     []WorkflowStep `json:"steps"`
	Completed bool           `json:"completed"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// WorkflowStep is a single step within a workflow. DependsOn holds sibling
// step IDs that must complete before this step can start.
type WorkflowStep struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	DependsOn       []string   `json:"depends_on,omitempty"`
	DurationMins    int        `json:"duration_mins"`
	Importance      int        `json:"importance,omitempty"`
	Urgency         int        `json:"urgency,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	IsAsyncTrigger  bool       `json:"is_async_trigger,omitempty"`
	AsyncWaitMins   int        `json:"async_wait_mins,omitempty"`
	Condition       string     `json:"condition,omitempty"` // CEL readiness guard
	PercentComplete int        `json:"percent_complete,omitempty"`
}

// NodeID satisfies the graph node contract.
func (s WorkflowStep) NodeID() string { return s.ID }

// NodeDependencies satisfies the graph node contract.
func (s WorkflowStep) NodeDependencies() []string { return s.DependsOn }

// NodeWeight is the step's contribution to a dependency chain, in minutes.
func (s WorkflowStep) NodeWeight() int {
	w := s.DurationMins
	if s.IsAsyncTrigger {
		w += s.AsyncWaitMins
	}
	return w
}

// Document is an import/export bundle of tasks and workflows.
type Document struct {
	Tasks     []Task     `json:"tasks,omitempty"`
	Workflows []Workflow `json:"workflows,omitempty"`
}
