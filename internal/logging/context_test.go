package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", SessionID(ctx))
	assert.Equal(t, "", WorkflowID(ctx))
	assert.Equal(t, "", ItemID(ctx))

	// Set values.
	ctx = WithSessionID(ctx, "sess-123")
	ctx = WithWorkflowID(ctx, "wf-1")
	ctx = WithItemID(ctx, "item-42")

	// Round-trip.
	assert.Equal(t, "sess-123", SessionID(ctx))
	assert.Equal(t, "wf-1", WorkflowID(ctx))
	assert.Equal(t, "item-42", ItemID(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	ctx = WithSessionID(ctx, "sess-abc")
	ctx = WithWorkflowID(ctx, "wf-x")
	ctx = WithItemID(ctx, "item-7")

	enriched := LogWith(ctx, logger)
	enriched.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-abc")
	assert.Contains(t, output, "workflow_id=wf-x")
	assert.Contains(t, output, "item_id=item-7")
	assert.Contains(t, output, "test message")
}

func TestLogWithMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Only set session ID — workflow and item should not appear.
	ctx := WithSessionID(context.Background(), "sess-only")

	enriched := LogWith(ctx, logger)
	enriched.Info("partial context")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-only")
	assert.NotContains(t, output, "workflow_id")
	assert.NotContains(t, output, "item_id")
}

func TestLogWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// No correlation IDs — no extra attrs.
	enriched := LogWith(context.Background(), logger)
	enriched.Info("no context")

	output := buf.String()
	assert.NotContains(t, output, "session_id")
	assert.NotContains(t, output, "workflow_id")
	assert.NotContains(t, output, "item_id")
	assert.Contains(t, output, "no context")
}

func TestWithIDs(t *testing.T) {
	ctx := WithIDs(context.Background(), "sess-1", "wf-2", "item-3")
	assert.Equal(t, "sess-1", SessionID(ctx))
	assert.Equal(t, "wf-2", WorkflowID(ctx))
	assert.Equal(t, "item-3", ItemID(ctx))
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithIDs(context.Background(), "sess-auto", "wf-auto", "item-auto")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"session_id":"sess-auto"`)
	assert.Contains(t, output, `"workflow_id":"wf-auto"`)
	assert.Contains(t, output, `"item_id":"item-auto"`)
	assert.Contains(t, output, "auto inject")
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(context.Background(), "bare log")

	output := buf.String()
	assert.NotContains(t, output, "session_id")
	assert.NotContains(t, output, "workflow_id")
	assert.NotContains(t, output, "item_id")
	assert.Contains(t, output, "bare log")
}

func TestCorrelationHandlerPartialContext(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithSessionID(context.Background(), "sess-only")
	logger.InfoContext(ctx, "partial")

	output := buf.String()
	assert.Contains(t, output, `"session_id":"sess-only"`)
	assert.NotContains(t, output, "workflow_id")
	assert.NotContains(t, output, "item_id")
}

func TestCorrelationHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewCorrelationHandler(inner)
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "planner")}))

	ctx := WithSessionID(context.Background(), "sess-attr")
	logger.InfoContext(ctx, "with attrs")

	output := buf.String()
	assert.Contains(t, output, `"session_id":"sess-attr"`)
	assert.Contains(t, output, `"component":"planner"`)
}

func TestCorrelationHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewCorrelationHandler(inner)
	logger := slog.New(handler.WithGroup("planner"))

	ctx := WithSessionID(context.Background(), "sess-grp")
	logger.InfoContext(ctx, "grouped", "key", "val")

	output := buf.String()
	assert.Contains(t, output, "sess-grp")
	assert.Contains(t, output, "grouped")
}
