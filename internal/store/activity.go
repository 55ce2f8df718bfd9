package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rvellido/taskweave/pkg/schema"
)

// ActivityLog provides append-and-replay operations on top of a LibSQLStore.
// Session progress is never stored as mutable state; it is reconstructed by
// replaying the log, so a crash mid-session loses nothing.
type ActivityLog struct {
	store *LibSQLStore
}

// NewActivityLog wraps a LibSQLStore to provide activity log operations.
func NewActivityLog(s *LibSQLStore) *ActivityLog {
	return &ActivityLog{store: s}
}

// Append appends an entry with a monotonically increasing per-session
// sequence. Uses a write-intent statement to ensure sequence correctness
// under concurrency.
func (al *ActivityLog) Append(ctx context.Context, entry *ActivityEntry) error {
	db := al.store.DB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx may start a deferred transaction; force lock
	// acquisition with an immediate write so concurrent appenders cannot
	// interleave sequence reads and writes.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM activity WHERE session_id = ?`, entry.SessionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	entry.Sequence = seq

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO activity (session_id, item_id, activity_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID, nullStr(entry.ItemID), entry.Type, nullRaw(entry.Payload), entry.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activity: %w", err)
	}
	return nil
}

// List returns activity for a session with sequence > since, ordered by
// sequence ASC.
func (al *ActivityLog) List(ctx context.Context, sessionID string, since int64) ([]*ActivityEntry, error) {
	return al.store.GetActivity(ctx, sessionID, since)
}

// CompleteItem records an item completion.
func (al *ActivityLog) CompleteItem(ctx context.Context, sessionID, itemID string) error {
	return al.Append(ctx, &ActivityEntry{
		SessionID: sessionID,
		ItemID:    itemID,
		Type:      ActivityItemCompleted,
	})
}

// ReopenItem records that a previously completed item was reopened.
func (al *ActivityLog) ReopenItem(ctx context.Context, sessionID, itemID string) error {
	return al.Append(ctx, &ActivityEntry{
		SessionID: sessionID,
		ItemID:    itemID,
		Type:      ActivityItemReopened,
	})
}

// StartAsync records that an async trigger was fired; the external wait runs
// for waitMins from the entry's timestamp.
func (al *ActivityLog) StartAsync(ctx context.Context, sessionID, itemID string, waitMins int) error {
	payload, err := json.Marshal(AsyncStartedPayload{WaitMins: waitMins})
	if err != nil {
		return fmt.Errorf("marshal async payload: %w", err)
	}
	return al.Append(ctx, &ActivityEntry{
		SessionID: sessionID,
		ItemID:    itemID,
		Type:      ActivityAsyncStarted,
		Payload:   payload,
	})
}

// Replay replays all activity for a session and returns the reconstructed
// progress. Returns an error when sequence gaps are detected, since a gap
// means the log can no longer be trusted.
func (al *ActivityLog) Replay(ctx context.Context, sessionID string) (*SessionProgress, error) {
	entries, err := al.store.GetActivity(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("get activity for replay: %w", err)
	}

	progress := &SessionProgress{
		Completed:     make(map[string]bool),
		AsyncEndTimes: make(map[string]time.Time),
	}

	for i, e := range entries {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in session %s: expected %d, got %d", sessionID, expected, e.Sequence)
		}

		if e.ItemID == "" {
			continue
		}

		switch e.Type {
		case ActivityItemCompleted:
			progress.Completed[e.ItemID] = true

		case ActivityItemReopened:
			delete(progress.Completed, e.ItemID)
			delete(progress.AsyncEndTimes, e.ItemID)

		case ActivityAsyncStarted:
			var p AsyncStartedPayload
			if len(e.Payload) > 0 {
				if err := json.Unmarshal(e.Payload, &p); err != nil {
					return nil, fmt.Errorf("unmarshal async payload at sequence %d: %w", e.Sequence, err)
				}
			}
			// The trigger stays out of Completed until its wait elapses;
			// dependents are gated on the end time instead.
			progress.AsyncEndTimes[e.ItemID] = e.Timestamp.Add(time.Duration(p.WaitMins) * time.Minute)

		case ActivitySessionNote:
			// Notes carry no scheduling state.
		}
	}

	return progress, nil
}
