package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvellido/taskweave/internal/store"
	"github.com/rvellido/taskweave/pkg/schema"
)

// --- Mock Store ---

type mockStore struct {
	store.Store // embed for unimplemented methods

	tasks     []*schema.Task
	workflows []*schema.Workflow
	sessions  map[string]*store.WorkSession
	activity  []*store.ActivityEntry
	progress  map[string]*store.SessionProgress
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions: make(map[string]*store.WorkSession),
		progress: make(map[string]*store.SessionProgress),
	}
}

func (m *mockStore) ListTasks(_ context.Context, filter store.TaskFilter) ([]*schema.Task, error) {
	result := make([]*schema.Task, 0)
	for _, task := range m.tasks {
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		result = append(result, task)
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *mockStore) ListWorkflows(_ context.Context, filter store.WorkflowFilter) ([]*schema.Workflow, error) {
	result := make([]*schema.Workflow, 0)
	for _, wf := range m.workflows {
		if filter.Completed != nil && wf.Completed != *filter.Completed {
			continue
		}
		result = append(result, wf)
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *mockStore) GetWorkflow(_ context.Context, id string) (*schema.Workflow, error) {
	for _, wf := range m.workflows {
		if wf.ID == id {
			return wf, nil
		}
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "workflow not found")
}

func (m *mockStore) UpdateWorkflow(_ context.Context, id string, update store.WorkflowUpdate) error {
	for _, wf := range m.workflows {
		if wf.ID == id {
			if update.Steps != nil {
				wf.Steps = update.Steps
			}
			return nil
		}
	}
	return schema.NewError(schema.ErrCodeNotFound, "workflow not found")
}

func (m *mockStore) CreateSession(_ context.Context, session *store.WorkSession) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *mockStore) GetSession(_ context.Context, id string) (*store.WorkSession, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "session not found")
}

func (m *mockStore) AppendActivity(_ context.Context, entry *store.ActivityEntry) error {
	entry.Sequence = int64(len(m.activity) + 1)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.activity = append(m.activity, entry)
	return nil
}

func (m *mockStore) GetActivity(_ context.Context, sessionID string, since int64) ([]*store.ActivityEntry, error) {
	result := make([]*store.ActivityEntry, 0)
	for _, e := range m.activity {
		if e.SessionID == sessionID && e.Sequence > since {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockStore) ReplaySession(_ context.Context, sessionID string) (*store.SessionProgress, error) {
	if p, ok := m.progress[sessionID]; ok {
		return p, nil
	}
	return &store.SessionProgress{
		Completed:     make(map[string]bool),
		AsyncEndTimes: make(map[string]time.Time),
	}, nil
}

// --- Helpers ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func newTestServer(t *testing.T, ms *mockStore) *WeaveServer {
	t.Helper()
	s, err := NewWeaveServer(WeaveServerDeps{Store: ms})
	require.NoError(t, err)
	return s
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, result)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

// --- Plan Tests ---

func TestPlanTool(t *testing.T) {
	ms := newMockStore()
	ms.tasks = []*schema.Task{
		{ID: "a", Name: "First", DurationMins: 10},
		{ID: "b", Name: "Second", DurationMins: 20, Dependencies: []string{"a"}},
	}

	s := newTestServer(t, ms)

	result, err := s.handlePlan(context.Background(), buildRequest("taskweave.plan", map[string]any{}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	items := out["items"].([]any)
	require.Len(t, items, 2)
}

func TestPlanToolSessionProgressGatesDependencies(t *testing.T) {
	ms := newMockStore()
	ms.tasks = []*schema.Task{
		{ID: "a", Name: "First"},
		{ID: "b", Name: "Second", Dependencies: []string{"a"}},
	}
	ms.progress["sess-1"] = &store.SessionProgress{
		Completed:     map[string]bool{"a": true},
		AsyncEndTimes: map[string]time.Time{},
	}

	s := newTestServer(t, ms)

	result, err := s.handlePlan(context.Background(), buildRequest("taskweave.plan", map[string]any{
		"session_id": "sess-1",
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	for _, raw := range out["items"].([]any) {
		item := raw.(map[string]any)
		if item["id"] == "b" {
			readiness := item["readiness"].(map[string]any)
			assert.Equal(t, true, readiness["can_schedule"], "completed dependency unblocks b")
		}
	}
}

func TestPlanToolWithFilter(t *testing.T) {
	ms := newMockStore()
	ms.tasks = []*schema.Task{
		{ID: "big", Name: "Big", Importance: 9, Urgency: 9},
		{ID: "small", Name: "Small", Importance: 1, Urgency: 1},
	}

	s := newTestServer(t, ms)

	result, err := s.handlePlan(context.Background(), buildRequest("taskweave.plan", map[string]any{
		"filter": "priority > 50",
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	items := out["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "big", items[0].(map[string]any)["id"])
}

func TestPlanToolBadFilter(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handlePlan(context.Background(), buildRequest("taskweave.plan", map[string]any{
		"filter": "priority +",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestPlanToolBadNow(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handlePlan(context.Background(), buildRequest("taskweave.plan", map[string]any{
		"now": "yesterday",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Validate Tests ---

func TestValidateToolDocumentParam(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handleValidate(context.Background(), buildRequest("taskweave.validate", map[string]any{
		"document": map[string]any{
			"workflows": []any{
				map[string]any{
					"id":   "w1",
					"name": "Release",
					"steps": []any{
						map[string]any{"id": "s1", "name": "Tag", "depends_on": []any{"ghost"}},
					},
				},
			},
		},
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, false, out["is_valid"])
	errs := out["errors"].([]any)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "non-existent step")
}

func TestValidateToolStructuralFailure(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handleValidate(context.Background(), buildRequest("taskweave.validate", map[string]any{
		"document": map[string]any{
			"tasks": []any{
				map[string]any{"id": "t1", "name": "Task", "importance": 15},
			},
		},
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, false, out["is_valid"])
}

func TestValidateToolStoredData(t *testing.T) {
	ms := newMockStore()
	ms.tasks = []*schema.Task{{ID: "t1", Name: "Fine"}}

	s := newTestServer(t, ms)

	result, err := s.handleValidate(context.Background(), buildRequest("taskweave.validate", map[string]any{}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, true, out["is_valid"])
}

// --- Amend Tests ---

func TestAmendToolAppliesAndPersists(t *testing.T) {
	ms := newMockStore()
	ms.workflows = []*schema.Workflow{
		{
			ID:   "w1",
			Name: "Release",
			Steps: []schema.WorkflowStep{
				{ID: "s1", Name: "Tag"},
				{ID: "s2", Name: "Publish"},
			},
		},
	}

	s := newTestServer(t, ms)

	result, err := s.handleAmend(context.Background(), buildRequest("taskweave.amend", map[string]any{
		"workflow_id":      "w1",
		"target":           "Publish",
		"add_dependencies": []any{"Tag"},
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, true, out["applied"])
	assert.Equal(t, []string{"s1"}, ms.workflows[0].Steps[1].DependsOn)
}

func TestAmendToolRejectsCycle(t *testing.T) {
	ms := newMockStore()
	ms.workflows = []*schema.Workflow{
		{
			ID:   "w1",
			Name: "Release",
			Steps: []schema.WorkflowStep{
				{ID: "s1", Name: "Tag"},
				{ID: "s2", Name: "Publish", DependsOn: []string{"s1"}},
			},
		},
	}

	s := newTestServer(t, ms)

	result, err := s.handleAmend(context.Background(), buildRequest("taskweave.amend", map[string]any{
		"workflow_id":      "w1",
		"target":           "Tag",
		"add_dependencies": []any{"Publish"},
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, false, out["applied"])
	require.NotEmpty(t, out["errors"])
	assert.Empty(t, ms.workflows[0].Steps[0].DependsOn, "rejected edit is not persisted")
}

func TestAmendToolReportsUnresolved(t *testing.T) {
	ms := newMockStore()
	ms.workflows = []*schema.Workflow{
		{
			ID:    "w1",
			Name:  "Release",
			Steps: []schema.WorkflowStep{{ID: "s1", Name: "Tag"}},
		},
	}

	s := newTestServer(t, ms)

	result, err := s.handleAmend(context.Background(), buildRequest("taskweave.amend", map[string]any{
		"workflow_id":      "w1",
		"target":           "Tag",
		"add_dependencies": []any{"Nope"},
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	unresolved := out["unresolved"].([]any)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "Nope", unresolved[0])
}

func TestAmendToolUnknownWorkflow(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handleAmend(context.Background(), buildRequest("taskweave.amend", map[string]any{
		"workflow_id": "nope",
		"target":      "Tag",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Complete Tests ---

func TestCompleteToolCreatesSessionAndAppends(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handleComplete(context.Background(), buildRequest("taskweave.complete", map[string]any{
		"session_id": "sess-1",
		"item_id":    "t1",
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, true, out["ok"])

	_, ok := ms.sessions["sess-1"]
	assert.True(t, ok, "session is created on first use")
	require.Len(t, ms.activity, 1)
	assert.Equal(t, store.ActivityItemCompleted, ms.activity[0].Type)
}

func TestCompleteToolAsyncTrigger(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handleComplete(context.Background(), buildRequest("taskweave.complete", map[string]any{
		"session_id": "sess-1",
		"item_id":    "deploy",
		"async":      true,
		"wait_mins":  30.0,
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, true, out["ok"])
	assert.NotEmpty(t, out["async_end"])

	require.Len(t, ms.activity, 1)
	assert.Equal(t, store.ActivityAsyncStarted, ms.activity[0].Type)
	assert.JSONEq(t, `{"wait_mins":30}`, string(ms.activity[0].Payload))
}

// --- Query Tests ---

func TestQueryToolTasks(t *testing.T) {
	ms := newMockStore()
	ms.tasks = []*schema.Task{
		{ID: "t1", Name: "Open"},
		{ID: "t2", Name: "Done", Completed: true},
	}

	s := newTestServer(t, ms)

	result, err := s.handleQuery(context.Background(), buildRequest("taskweave.query", map[string]any{
		"resource": "tasks",
		"filter":   map[string]any{"completed": false},
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	tasks := out["tasks"].([]any)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].(map[string]any)["id"])
}

func TestQueryToolActivityRequiresSession(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handleQuery(context.Background(), buildRequest("taskweave.query", map[string]any{
		"resource": "activity",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestQueryToolUnknownResource(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handleQuery(context.Background(), buildRequest("taskweave.query", map[string]any{
		"resource": "secrets",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
