package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rvellido/taskweave/internal/diagram"
	"github.com/rvellido/taskweave/internal/expressions"
	"github.com/rvellido/taskweave/internal/ingest"
	"github.com/rvellido/taskweave/internal/logging"
	"github.com/rvellido/taskweave/internal/normalize"
	"github.com/rvellido/taskweave/internal/planner"
	"github.com/rvellido/taskweave/internal/recur"
	"github.com/rvellido/taskweave/internal/store"
	"github.com/rvellido/taskweave/internal/validation"
	"github.com/rvellido/taskweave/internal/watcher"
	"github.com/rvellido/taskweave/pkg/mcp"
)

const usage = `taskweave - dependency-aware task and workflow scheduler

Usage:
  taskweave serve               Run the MCP server on stdio
  taskweave plan [flags]        Print the scheduled ordering of open items
  taskweave graph [flags]       Render the dependency graph of open items
  taskweave validate [file]     Validate a document (or the stored data)
  taskweave import [flags] file Import a document, optionally via a jq transform
  taskweave version             Print the version

Plan and graph flags:
  -session ID    Gate dependencies on a work session's progress
  -filter EXPR   Keep only items matching the expression

Graph flags:
  -format FMT    Output format: ascii (default) or mermaid

Import flags:
  -transform JQ  jq expression reshaping the input into the document format
`

func main() {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe(cfg, logger)
	case "plan":
		err = runPlan(cfg, logger, args[1:])
	case "graph":
		err = runGraph(cfg, logger, args[1:])
	case "validate":
		err = runValidate(cfg, args[1:])
	case "import":
		err = runImport(cfg, logger, args[1:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func openStore(ctx context.Context, cfg Config) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(taskweaveDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func runServe(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := mcp.NewWeaveServer(mcp.WeaveServerDeps{Store: st, Logger: logger})
	if err != nil {
		return err
	}

	w := watcher.NewWatcher(st, srv.Notifier(), logger)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	logger.Info("serving MCP on stdio", "db", cfg.DBPath)
	return srv.Serve(ctx)
}

func runPlan(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	sessionID := fs.String("session", "", "work session whose progress gates dependencies")
	filter := fs.String("filter", cfg.DefaultFilter, "expression to filter items")
	if err := fs.Parse(args); err != nil {
		return err
	}

	plan, warnings, err := computePlan(cfg, logger, *sessionID, *filter)
	if err != nil {
		return err
	}

	for _, w := range append(warnings, plan.Warnings...) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	for i, item := range plan.Items {
		marker := " "
		switch {
		case item.Readiness.CanSchedule:
			marker = "*"
		case item.Readiness.WaitingOnAsync:
			marker = "~"
		}
		fmt.Printf("%3d %s %-40s prio=%-3d cp=%dm\n",
			i+1, marker, item.Name, item.Priority, item.CriticalPathMins)
	}
	return nil
}

func runGraph(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	sessionID := fs.String("session", "", "work session whose progress gates dependencies")
	filter := fs.String("filter", cfg.DefaultFilter, "expression to filter items")
	format := fs.String("format", "ascii", "output format: ascii or mermaid")
	if err := fs.Parse(args); err != nil {
		return err
	}

	plan, warnings, err := computePlan(cfg, logger, *sessionID, *filter)
	if err != nil {
		return err
	}
	for _, w := range append(warnings, plan.Warnings...) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	model := diagram.Build("taskweave plan", plan)
	switch *format {
	case "mermaid":
		fmt.Print(diagram.RenderMermaid(model))
	case "ascii":
		fmt.Print(diagram.RenderASCII(model))
	default:
		return fmt.Errorf("unknown format %q (want ascii or mermaid)", *format)
	}
	return nil
}

// computePlan loads stored tasks and workflows, normalizes them against the
// optional session's progress, and runs one scheduling pass.
func computePlan(cfg Config, logger *slog.Logger, sessionID, filter string) (*planner.Plan, []string, error) {
	ctx := context.Background()
	if sessionID != "" {
		ctx = logging.WithSessionID(ctx, sessionID)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	now := time.Now().UTC()
	state := planner.State{Now: now}
	if sessionID != "" {
		progress, err := st.ReplaySession(ctx, sessionID)
		if err != nil {
			return nil, nil, err
		}
		state.Completed = progress.Completed
		state.AsyncEndTimes = progress.AsyncEndTimes
	}

	tasks, err := st.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, nil, err
	}
	workflows, err := st.ListWorkflows(ctx, store.WorkflowFilter{})
	if err != nil {
		return nil, nil, err
	}

	parser := recur.NewParser()
	items, warnings := normalize.WorkItems(derefTasks(tasks), derefWorkflows(workflows), normalize.Options{
		Now:            now,
		NextOccurrence: parser.Next,
	})

	if filter != "" {
		items, err = planner.FilterItems(ctx, expressions.NewExprEngine(), items, filter)
		if err != nil {
			return nil, nil, err
		}
	}

	p, err := planner.New(logger)
	if err != nil {
		return nil, nil, err
	}
	return p.Plan(ctx, items, state), warnings, nil
}

func runValidate(cfg Config, args []string) error {
	ctx := context.Background()

	dv, err := validation.NewDocumentValidator()
	if err != nil {
		return err
	}

	result, err := validateTarget(ctx, cfg, dv, args)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
	}
	if !result.Valid() {
		for _, msg := range result.Messages() {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		return fmt.Errorf("validation failed with %d errors", len(result.Errors))
	}
	fmt.Println("valid")
	return nil
}

func runImport(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	transform := fs.String("transform", "", "jq expression reshaping the input")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := readInput(fs.Args())
	if err != nil {
		return err
	}

	ctx := context.Background()
	importer, err := ingest.NewImporter(logger)
	if err != nil {
		return err
	}

	doc, result, err := importer.Import(ctx, raw, *transform)
	if err != nil {
		return err
	}
	if !result.Valid() {
		for _, msg := range result.Messages() {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		return fmt.Errorf("import rejected: %d validation errors", len(result.Errors))
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	for i := range doc.Tasks {
		if err := st.CreateTask(ctx, &doc.Tasks[i]); err != nil {
			return fmt.Errorf("store task %q: %w", doc.Tasks[i].Name, err)
		}
	}
	for i := range doc.Workflows {
		if err := st.CreateWorkflow(ctx, &doc.Workflows[i]); err != nil {
			return fmt.Errorf("store workflow %q: %w", doc.Workflows[i].Name, err)
		}
	}

	fmt.Printf("imported %d tasks, %d workflows\n", len(doc.Tasks), len(doc.Workflows))
	return nil
}

// validateTarget validates a file when one is given, the stored data
// otherwise.
func validateTarget(ctx context.Context, cfg Config, dv *validation.DocumentValidator, args []string) (*valResult, error) {
	if len(args) > 0 {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		return validateRaw(dv, raw)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	tasks, err := st.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	workflows, err := st.ListWorkflows(ctx, store.WorkflowFilter{})
	if err != nil {
		return nil, err
	}
	doc := docOf(derefTasks(tasks), derefWorkflows(workflows))
	return dv.Validate(doc), nil
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}
