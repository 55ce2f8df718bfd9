package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rvellido/taskweave/internal/expressions"
	"github.com/rvellido/taskweave/internal/planner"
	"github.com/rvellido/taskweave/internal/recur"
	"github.com/rvellido/taskweave/internal/store"
	"github.com/rvellido/taskweave/internal/validation"
)

// WeaveServerDeps holds the dependencies for creating a WeaveServer.
type WeaveServerDeps struct {
	Store  store.Store
	Logger *slog.Logger
}

// WeaveServer wraps an MCP server with taskweave-specific tool handlers.
type WeaveServer struct {
	store     store.Store
	planner   *planner.Planner
	validator *validation.DocumentValidator
	recur     *recur.Parser
	filters   *expressions.ExprEngine
	sessions  *SessionRegistry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewWeaveServer creates a new WeaveServer with all 5 tools registered.
func NewWeaveServer(deps WeaveServerDeps) (*WeaveServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	p, err := planner.New(logger)
	if err != nil {
		return nil, err
	}
	dv, err := validation.NewDocumentValidator()
	if err != nil {
		return nil, err
	}

	s := &WeaveServer{
		store:     deps.Store,
		planner:   p,
		validator: dv,
		recur:     recur.NewParser(),
		filters:   expressions.NewExprEngine(),
		sessions:  NewSessionRegistry(),
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"taskweave",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Taskweave is a dependency-aware task and workflow scheduler. Use taskweave.plan to get a scheduled ordering of work items, taskweave.validate to check dependency graphs, taskweave.amend to edit step dependencies by name, taskweave.complete to record progress in a work session, and taskweave.query to list tasks/workflows/sessions/activity."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *WeaveServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *WeaveServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Notifier returns a SessionNotifier that pushes through this server.
func (s *WeaveServer) Notifier() SessionNotifier {
	return NewMCPNotifier(s.mcpServer, s.sessions)
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *WeaveServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: planTool(), Handler: s.handlePlan},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: amendTool(), Handler: s.handleAmend},
		{Tool: completeTool(), Handler: s.handleComplete},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func planTool() mcp.Tool {
	return mcp.NewTool("taskweave.plan",
		mcp.WithDescription("Compute a scheduled ordering of all open work items"),
		mcp.WithString("session_id", mcp.Description("Work session whose progress gates dependencies")),
		mcp.WithString("filter", mcp.Description("Expression to filter items, e.g. 'priority >= 40 && kind == \"task\"'")),
		mcp.WithString("now", mcp.Description("Reference time as RFC3339 (default: current time)")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("taskweave.validate",
		mcp.WithDescription("Validate a document's structure and dependency graphs"),
		mcp.WithObject("document", mcp.Description("Document to validate; omitted, the stored tasks and workflows are validated")),
	)
}

func amendTool() mcp.Tool {
	return mcp.NewTool("taskweave.amend",
		mcp.WithDescription("Edit a workflow step's dependencies by step name. Changes are validated before persisting"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to amend")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Name of the step whose edges change")),
		mcp.WithArray("add_dependencies", mcp.Description("Step names the target should wait on")),
		mcp.WithArray("remove_dependencies", mcp.Description("Step names the target should stop waiting on")),
		mcp.WithArray("add_dependents", mcp.Description("Step names that should wait on the target")),
		mcp.WithArray("remove_dependents", mcp.Description("Step names that should stop waiting on the target")),
	)
}

func completeTool() mcp.Tool {
	return mcp.NewTool("taskweave.complete",
		mcp.WithDescription("Record progress in a work session: an item completion or an async trigger firing"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Work session to record against (created if missing)")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("ID of the completed or triggered item")),
		mcp.WithBoolean("async", mcp.Description("The item is an async trigger that was just fired")),
		mcp.WithNumber("wait_mins", mcp.Description("External wait in minutes (async triggers only)")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("taskweave.query",
		mcp.WithDescription("Query tasks, workflows, sessions, or session activity"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("tasks", "workflows", "sessions", "activity"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (completed, due_before, active, session_id, since, limit)")),
	)
}
