package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWeaveServer(t *testing.T) {
	s, err := NewWeaveServer(WeaveServerDeps{})
	require.NoError(t, err)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
}

func TestToolRegistration(t *testing.T) {
	s, err := NewWeaveServer(WeaveServerDeps{})
	require.NoError(t, err)

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 5)

	expectedTools := []string{
		"taskweave.plan",
		"taskweave.validate",
		"taskweave.amend",
		"taskweave.complete",
		"taskweave.query",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"plan", "taskweave.plan", "Compute a scheduled ordering of all open work items"},
		{"validate", "taskweave.validate", "Validate a document's structure and dependency graphs"},
		{"amend", "taskweave.amend", "Edit a workflow step's dependencies by step name. Changes are validated before persisting"},
		{"complete", "taskweave.complete", "Record progress in a work session: an item completion or an async trigger firing"},
		{"query", "taskweave.query", "Query tasks, workflows, sessions, or session activity"},
	}

	s, err := NewWeaveServer(WeaveServerDeps{})
	require.NoError(t, err)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
