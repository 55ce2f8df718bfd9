// Package watcher polls active work sessions for elapsed async waits and
// announces them to connected clients.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rvellido/taskweave/internal/store"
)

// Notifier is the interface the watcher uses to push announcements.
// Satisfied by the MCP notifier (avoids import cycle).
type Notifier interface {
	Notify(ctx context.Context, sessionID string, payload map[string]any) error
}

// Watcher polls the store for async triggers whose wait has elapsed and
// notifies the session that fired them.
type Watcher struct {
	store    store.Store
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	seenMu sync.Mutex
	seen   map[string]struct{} // sessionID+"/"+itemID already announced
}

// NewWatcher creates a new Watcher with a 30s poll interval.
func NewWatcher(s store.Store, notifier Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		store:    s,
		notifier: notifier,
		interval: 30 * time.Second,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Start launches the background polling loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.done != nil {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(watchCtx)
	w.logger.Info("async watcher started")
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	w.tick(ctx, time.Now().UTC())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx, time.Now().UTC())
		}
	}
}

// tick replays every active session and announces async waits that have
// elapsed since the trigger fired.
func (w *Watcher) tick(ctx context.Context, now time.Time) {
	active := true
	sessions, err := w.store.ListSessions(ctx, store.SessionFilter{Active: &active})
	if err != nil {
		w.logger.Error("failed to list active sessions", slog.String("error", err.Error()))
		return
	}

	for _, sess := range sessions {
		progress, err := w.store.ReplaySession(ctx, sess.ID)
		if err != nil {
			w.logger.Error("failed to replay session",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		for itemID, end := range progress.AsyncEndTimes {
			if end.After(now) {
				continue
			}
			if !w.markSeen(sess.ID, itemID) {
				continue // already announced
			}
			if err := w.announce(ctx, sess.ID, itemID, end); err != nil {
				w.logger.Error("failed to announce elapsed wait",
					slog.String("session_id", sess.ID),
					slog.String("item_id", itemID),
					slog.String("error", err.Error()),
				)
				w.forget(sess.ID, itemID)
			}
		}
	}
}

func (w *Watcher) announce(ctx context.Context, sessionID, itemID string, end time.Time) error {
	w.logger.Info("async wait elapsed",
		slog.String("session_id", sessionID),
		slog.String("item_id", itemID),
	)
	return w.notifier.Notify(ctx, sessionID, map[string]any{
		"type":       "async_wait_elapsed",
		"session_id": sessionID,
		"item_id":    itemID,
		"ended_at":   end.Format(time.RFC3339),
	})
}

// markSeen returns true the first time a session/item pair is announced.
func (w *Watcher) markSeen(sessionID, itemID string) bool {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	key := sessionID + "/" + itemID
	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	return true
}

// forget clears a pair so a failed announcement is retried next tick.
func (w *Watcher) forget(sessionID, itemID string) {
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	delete(w.seen, sessionID+"/"+itemID)
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return nil
	}

	w.cancel()
	<-w.done
	w.cancel = nil
	w.done = nil

	w.logger.Info("async watcher stopped")
	return nil
}
