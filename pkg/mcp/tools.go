package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rvellido/taskweave/internal/depedit"
	"github.com/rvellido/taskweave/internal/normalize"
	"github.com/rvellido/taskweave/internal/planner"
	"github.com/rvellido/taskweave/internal/store"
	"github.com/rvellido/taskweave/internal/validation"
	"github.com/rvellido/taskweave/pkg/schema"
)

// handlePlan computes a scheduled ordering of all open work items.
func (s *WeaveServer) handlePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	filter := req.GetString("filter", "")

	now := time.Now().UTC()
	if nowStr := req.GetString("now", ""); nowStr != "" {
		t, err := time.Parse(time.RFC3339, nowStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid now: %v", err)), nil
		}
		now = t.UTC()
	}

	st := planner.State{Now: now}
	if sessionID != "" {
		s.captureSession(ctx, sessionID)
		progress, err := s.store.ReplaySession(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to replay session: %v", err)), nil
		}
		st.Completed = progress.Completed
		st.AsyncEndTimes = progress.AsyncEndTimes
	}

	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}
	workflows, err := s.store.ListWorkflows(ctx, store.WorkflowFilter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list workflows: %v", err)), nil
	}

	items, warnings := normalize.WorkItems(derefTasks(tasks), derefWorkflows(workflows), normalize.Options{
		Now:            now,
		NextOccurrence: s.recur.Next,
	})

	if filter != "" {
		items, err = planner.FilterItems(ctx, s.filters, items, filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid filter: %v", err)), nil
		}
	}

	plan := s.planner.Plan(ctx, items, st)

	return marshalResult(map[string]any{
		"items":    plan.Items,
		"warnings": append(warnings, plan.Warnings...),
	})
}

// handleValidate validates a supplied document, or the stored tasks and
// workflows when none is given.
func (s *WeaveServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var result *schema.ValidationResult
	if docRaw, ok := args["document"].(map[string]any); ok {
		raw, err := json.Marshal(docRaw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid document: %v", err)), nil
		}
		if err := s.validator.ValidateRaw(raw); err != nil {
			return marshalResult(map[string]any{
				"is_valid": false,
				"errors":   []string{err.Error()},
			})
		}
		var doc schema.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid document: %v", err)), nil
		}
		result = s.validator.Validate(&doc)
	} else {
		doc, err := s.loadDocument(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load stored data: %v", err)), nil
		}
		result = s.validator.Validate(doc)
	}

	var warnings []string
	for _, w := range result.Warnings {
		warnings = append(warnings, w.Message)
	}
	return marshalResult(map[string]any{
		"is_valid": result.Valid(),
		"errors":   result.Messages(),
		"warnings": warnings,
	})
}

// handleAmend edits a workflow step's dependency edges by step name. The
// result is validated before persisting; an edit that breaks the graph is
// reported and dropped.
func (s *WeaveServer) handleAmend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError("target is required"), nil
	}

	args := req.GetArguments()
	change := schema.DependencyChangeRequest{
		Target:             target,
		AddDependencies:    extractStrings(args, "add_dependencies"),
		RemoveDependencies: extractStrings(args, "remove_dependencies"),
		AddDependents:      extractStrings(args, "add_dependents"),
		RemoveDependents:   extractStrings(args, "remove_dependents"),
	}

	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow not found: %v", err)), nil
	}

	res, err := depedit.Apply(wf.Steps, change)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("amendment failed: %v", err)), nil
	}

	check := validation.ValidateWorkflowDependencies(res.Steps)
	if !check.Valid() {
		return marshalResult(map[string]any{
			"applied":    false,
			"errors":     check.Messages(),
			"changes":    res.Changes,
			"unresolved": res.Unresolved,
		})
	}

	if err := s.store.UpdateWorkflow(ctx, workflowID, store.WorkflowUpdate{Steps: res.Steps}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to persist amendment: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"applied":    true,
		"changes":    res.Changes,
		"unresolved": res.Unresolved,
	})
}

// handleComplete records an item completion or async trigger firing against
// a work session, creating the session on first use.
func (s *WeaveServer) handleComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError("item_id is required"), nil
	}

	args := req.GetArguments()
	async, _ := args["async"].(bool)
	waitMins := extractInt(args, "wait_mins", 0)

	if _, getErr := s.store.GetSession(ctx, sessionID); getErr != nil {
		if createErr := s.store.CreateSession(ctx, &store.WorkSession{ID: sessionID}); createErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create session: %v", createErr)), nil
		}
	}
	s.captureSession(ctx, sessionID)

	entry := &store.ActivityEntry{
		SessionID: sessionID,
		ItemID:    itemID,
		Type:      store.ActivityItemCompleted,
	}
	if async {
		payload, marshalErr := json.Marshal(store.AsyncStartedPayload{WaitMins: waitMins})
		if marshalErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid async payload: %v", marshalErr)), nil
		}
		entry.Type = store.ActivityAsyncStarted
		entry.Payload = payload
	}

	if appendErr := s.store.AppendActivity(ctx, entry); appendErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record activity: %v", appendErr)), nil
	}

	out := map[string]any{
		"ok":         true,
		"session_id": sessionID,
		"item_id":    itemID,
		"sequence":   entry.Sequence,
	}
	if async {
		out["async_end"] = entry.Timestamp.Add(time.Duration(waitMins) * time.Minute)
	}
	return marshalResult(out)
}

// handleQuery lists tasks, workflows, sessions, or activity based on filters.
func (s *WeaveServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "tasks":
		return s.queryTasks(ctx, filter)
	case "workflows":
		return s.queryWorkflows(ctx, filter)
	case "sessions":
		return s.querySessions(ctx, filter)
	case "activity":
		return s.queryActivity(ctx, filter)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Query helpers ---

func (s *WeaveServer) queryTasks(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	tf := store.TaskFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if completed, ok := filter["completed"].(bool); ok {
		tf.Completed = &completed
	}
	if dueBefore, ok := filter["due_before"].(string); ok && dueBefore != "" {
		if t, err := time.Parse(time.RFC3339, dueBefore); err == nil {
			tf.DueBefore = &t
		}
	}

	tasks, err := s.store.ListTasks(ctx, tf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"tasks": tasks})
}

func (s *WeaveServer) queryWorkflows(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	wf := store.WorkflowFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if completed, ok := filter["completed"].(bool); ok {
		wf.Completed = &completed
	}

	workflows, err := s.store.ListWorkflows(ctx, wf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"workflows": workflows})
}

func (s *WeaveServer) querySessions(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	sf := store.SessionFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if active, ok := filter["active"].(bool); ok {
		sf.Active = &active
	}

	sessions, err := s.store.ListSessions(ctx, sf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"sessions": sessions})
}

func (s *WeaveServer) queryActivity(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	sessionID, ok := filter["session_id"].(string)
	if !ok || sessionID == "" {
		return mcp.NewToolResultError("activity query requires 'session_id' in filter"), nil
	}
	since := int64(extractInt(filter, "since", 0))

	entries, err := s.store.GetActivity(ctx, sessionID, since)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"activity": entries})
}

// --- Internal helpers ---

// loadDocument assembles the stored tasks and workflows into a Document.
func (s *WeaveServer) loadDocument(ctx context.Context) (*schema.Document, error) {
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	workflows, err := s.store.ListWorkflows(ctx, store.WorkflowFilter{})
	if err != nil {
		return nil, err
	}
	return &schema.Document{
		Tasks:     derefTasks(tasks),
		Workflows: derefWorkflows(workflows),
	}, nil
}

func derefTasks(tasks []*schema.Task) []schema.Task {
	out := make([]schema.Task, len(tasks))
	for i, t := range tasks {
		out[i] = *t
	}
	return out
}

func derefWorkflows(workflows []*schema.Workflow) []schema.Workflow {
	out := make([]schema.Workflow, len(workflows))
	for i, wf := range workflows {
		out[i] = *wf
	}
	return out
}

// extractStrings extracts a string slice from a tool argument map.
func extractStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// captureSession maps the work session ID to its current MCP client session
// for notifications.
func (s *WeaveServer) captureSession(ctx context.Context, sessionID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(sessionID, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
