package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rvellido/taskweave/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. activity replay).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Tasks ---

const taskColumns = `id, name, description, importance, urgency, duration_mins, deadline, dependencies, is_async_trigger, async_wait_mins, cognitive_complexity, recurrence, completed, created_at, updated_at`

func (s *LibSQLStore) CreateTask(ctx context.Context, task *schema.Task) error {
	deps, err := marshalStringsOrDefault(task.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Name, nullStr(task.Description),
		nullInt(task.Importance), nullInt(task.Urgency), task.DurationMins,
		nullTime(task.Deadline), string(deps),
		task.IsAsyncTrigger, task.AsyncWaitMins,
		nullInt(task.CognitiveComplexity), nullStr(task.Recurrence),
		task.Completed, timeOrNow(task.CreatedAt), timeOrNow(task.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetTask(ctx context.Context, id string) (*schema.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("task", id)
	}
	return task, err
}

func (s *LibSQLStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullStr(*update.Description))
	}
	if update.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, nullInt(*update.Importance))
	}
	if update.Urgency != nil {
		sets = append(sets, "urgency = ?")
		args = append(args, nullInt(*update.Urgency))
	}
	if update.DurationMins != nil {
		sets = append(sets, "duration_mins = ?")
		args = append(args, *update.DurationMins)
	}
	if update.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, *update.Deadline)
	} else if update.ClearDeadline {
		sets = append(sets, "deadline = NULL")
	}
	if update.Dependencies != nil {
		deps, err := marshalStringsOrDefault(update.Dependencies)
		if err != nil {
			return fmt.Errorf("marshal dependencies: %w", err)
		}
		sets = append(sets, "dependencies = ?")
		args = append(args, string(deps))
	}
	if update.IsAsyncTrigger != nil {
		sets = append(sets, "is_async_trigger = ?")
		args = append(args, *update.IsAsyncTrigger)
	}
	if update.AsyncWaitMins != nil {
		sets = append(sets, "async_wait_mins = ?")
		args = append(args, *update.AsyncWaitMins)
	}
	if update.CognitiveComplexity != nil {
		sets = append(sets, "cognitive_complexity = ?")
		args = append(args, nullInt(*update.CognitiveComplexity))
	}
	if update.Recurrence != nil {
		sets = append(sets, "recurrence = ?")
		args = append(args, nullStr(*update.Recurrence))
	}
	if update.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *update.Completed)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "task", id)
}

func (s *LibSQLStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*schema.Task, error) {
	var where []string
	var args []any

	if filter.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, *filter.Completed)
	}
	if filter.DueBefore != nil {
		where = append(where, "deadline IS NOT NULL AND deadline < ?")
		args = append(args, *filter.DueBefore)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*schema.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *LibSQLStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "task", id)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*schema.Task, error) {
	t := &schema.Task{}
	var (
		description, depsJSON, recurrence  sql.NullString
		importance, urgency, cogComplexity sql.NullInt64
		deadline                           sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &description, &importance, &urgency,
		&t.DurationMins, &deadline, &depsJSON, &t.IsAsyncTrigger,
		&t.AsyncWaitMins, &cogComplexity, &recurrence, &t.Completed,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.Importance = int(importance.Int64)
	t.Urgency = int(urgency.Int64)
	t.CognitiveComplexity = int(cogComplexity.Int64)
	t.Recurrence = recurrence.String
	if deadline.Valid {
		t.Deadline = &deadline.Time
	}
	if depsJSON.Valid && depsJSON.String != "" {
		if err := json.Unmarshal([]byte(depsJSON.String), &t.Dependencies); err != nil {
			return nil, fmt.Errorf("unmarshal dependencies: %w", err)
		}
	}
	return t, nil
}

// --- Workflows ---

func (s *LibSQLStore) CreateWorkflow(ctx context.Context, wf *schema.Workflow) error {
	steps, err := marshalStepsOrDefault(wf.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, steps, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.Name, string(steps), wf.Completed,
		timeOrNow(wf.CreatedAt), timeOrNow(wf.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, id string) (*schema.Workflow, error) {
	wf := &schema.Workflow{}
	var stepsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, steps, completed, created_at, updated_at FROM workflows WHERE id = ?`, id,
	).Scan(&wf.ID, &wf.Name, &stepsJSON, &wf.Completed, &wf.CreatedAt, &wf.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("workflow", id)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stepsJSON), &wf.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return wf, nil
}

func (s *LibSQLStore) UpdateWorkflow(ctx context.Context, id string, update WorkflowUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Steps != nil {
		steps, err := marshalStepsOrDefault(update.Steps)
		if err != nil {
			return fmt.Errorf("marshal steps: %w", err)
		}
		sets = append(sets, "steps = ?")
		args = append(args, string(steps))
	}
	if update.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *update.Completed)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE workflows SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

func (s *LibSQLStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*schema.Workflow, error) {
	var where []string
	var args []any

	if filter.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, *filter.Completed)
	}

	query := `SELECT id, name, steps, completed, created_at, updated_at FROM workflows`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*schema.Workflow
	for rows.Next() {
		wf := &schema.Workflow{}
		var stepsJSON string
		if err := rows.Scan(&wf.ID, &wf.Name, &stepsJSON, &wf.Completed, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stepsJSON), &wf.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (s *LibSQLStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

// --- Work Sessions ---

func (s *LibSQLStore) CreateSession(ctx context.Context, session *WorkSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO work_sessions (id, name, started_at, ended_at) VALUES (?, ?, ?, ?)`,
		session.ID, nullStr(session.Name), timeOrNow(session.StartedAt), nullTime(session.EndedAt),
	)
	return err
}

func (s *LibSQLStore) GetSession(ctx context.Context, id string) (*WorkSession, error) {
	ws := &WorkSession{}
	var name sql.NullString
	var ended sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, started_at, ended_at FROM work_sessions WHERE id = ?`, id,
	).Scan(&ws.ID, &name, &ws.StartedAt, &ended)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("session", id)
	}
	if err != nil {
		return nil, err
	}
	ws.Name = name.String
	if ended.Valid {
		ws.EndedAt = &ended.Time
	}
	return ws, nil
}

func (s *LibSQLStore) EndSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE work_sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "session", id)
}

func (s *LibSQLStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*WorkSession, error) {
	var where []string
	if filter.Active != nil {
		if *filter.Active {
			where = append(where, "ended_at IS NULL")
		} else {
			where = append(where, "ended_at IS NOT NULL")
		}
	}

	query := `SELECT id, name, started_at, ended_at FROM work_sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*WorkSession
	for rows.Next() {
		ws := &WorkSession{}
		var name sql.NullString
		var ended sql.NullTime
		if err := rows.Scan(&ws.ID, &name, &ws.StartedAt, &ended); err != nil {
			return nil, err
		}
		ws.Name = name.String
		if ended.Valid {
			ws.EndedAt = &ended.Time
		}
		sessions = append(sessions, ws)
	}
	return sessions, rows.Err()
}

// AppendActivity appends a session activity entry with a per-session
// sequence. See ActivityLog.Append for the locking contract.
func (s *LibSQLStore) AppendActivity(ctx context.Context, entry *ActivityEntry) error {
	return NewActivityLog(s).Append(ctx, entry)
}

// ReplaySession reconstructs session progress from the activity log.
func (s *LibSQLStore) ReplaySession(ctx context.Context, sessionID string) (*SessionProgress, error) {
	return NewActivityLog(s).Replay(ctx, sessionID)
}

// GetActivity returns activity for a session with sequence > since, ordered
// by sequence ASC.
func (s *LibSQLStore) GetActivity(ctx context.Context, sessionID string, since int64) ([]*ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, item_id, activity_type, payload, timestamp, sequence
		 FROM activity WHERE session_id = ? AND sequence > ? ORDER BY sequence ASC`,
		sessionID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ActivityEntry
	for rows.Next() {
		e := &ActivityEntry{}
		var itemID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &itemID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.ItemID = itemID.String
		e.Payload = rawOrNil(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.WeaveError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func marshalStringsOrDefault(list []string) (json.RawMessage, error) {
	if len(list) == 0 {
		return json.RawMessage("[]"), nil
	}
	return json.Marshal(list)
}

func marshalStepsOrDefault(steps []schema.WorkflowStep) (json.RawMessage, error) {
	if len(steps) == 0 {
		return json.RawMessage("[]"), nil
	}
	return json.Marshal(steps)
}
