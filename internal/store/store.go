package store

import (
	"context"
	"time"

	"github.com/rvellido/taskweave/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, task *schema.Task) error
	GetTask(ctx context.Context, id string) (*schema.Task, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]*schema.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Workflows
	CreateWorkflow(ctx context.Context, wf *schema.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*schema.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, update WorkflowUpdate) error
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*schema.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	// Work Sessions
	CreateSession(ctx context.Context, session *WorkSession) error
	GetSession(ctx context.Context, id string) (*WorkSession, error)
	EndSession(ctx context.Context, id string, at time.Time) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]*WorkSession, error)

	// Activity Log (append-only)
	AppendActivity(ctx context.Context, entry *ActivityEntry) error
	GetActivity(ctx context.Context, sessionID string, since int64) ([]*ActivityEntry, error)
	ReplaySession(ctx context.Context, sessionID string) (*SessionProgress, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
