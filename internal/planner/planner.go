// Package planner turns a pool of normalized work items into an ordered
// execution plan: topological ordering with cycle warnings, per-item
// critical-path lengths, readiness gating against completed and async state,
// and a deadline / async-trigger / critical-path / priority total order.
//
// Every operation is a pure function over passed-in snapshots; the planner
// holds no state between calls beyond compiled guard expressions.
package planner

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/rvellido/taskweave/internal/expressions"
	"github.com/rvellido/taskweave/internal/graph"
	"github.com/rvellido/taskweave/pkg/schema"
)

// deadlineDecisiveGap is the minimum gap between two deadlines for the
// deadline tier to decide an ordering. Sub-day differences fall through to
// the later tiers so deadline noise does not dominate same-day items.
const deadlineDecisiveGap = 24 * time.Hour

// State is the caller-provided completion snapshot for one scheduling pass.
// The engine never reads ambient stores; everything arrives here.
type State struct {
	Completed     map[string]bool
	AsyncEndTimes map[string]time.Time
	Now           time.Time
}

// PlannedItem is a work item with its derived scheduling data.
type PlannedItem struct {
	schema.WorkItem
	CriticalPathMins int              `json:"critical_path_mins"`
	Readiness        schema.Readiness `json:"readiness"`
}

// Plan is the output of one scheduling pass. When Warnings is non-empty the
// ordering may not respect dependencies (cycle fallback); callers must not
// assume dependency order in that case.
type Plan struct {
	Items    []PlannedItem `json:"items"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Planner computes execution plans. Safe for concurrent use.
type Planner struct {
	guards *expressions.CELEngine
	logger *slog.Logger
}

// New creates a Planner. The CEL engine backs per-step readiness guard
// conditions.
func New(logger *slog.Logger) (*Planner, error) {
	guards, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{guards: guards, logger: logger}, nil
}

// Plan produces the execution plan for one pass over the given items.
func (p *Planner) Plan(ctx context.Context, items []schema.WorkItem, st State) *Plan {
	plan := &Plan{}

	sorted, warnings := graph.TopologicalSort(items)
	plan.Warnings = append(plan.Warnings, warnings...)

	criticalPaths := graph.CriticalPaths(items)

	readiness := make(map[string]schema.Readiness, len(items))
	for _, item := range sorted {
		r := CheckDependencies(item, st)
		if r.CanSchedule && item.Condition != "" {
			held, err := p.evaluateGuard(ctx, item, st)
			if err != nil {
				plan.Warnings = append(plan.Warnings, err.Error())
			} else if held {
				r.CanSchedule = false
				r.GuardHeld = true
			}
		}
		readiness[item.ID] = r
	}

	ordered := SortBySchedulingPriority(sorted, criticalPaths)
	plan.Items = make([]PlannedItem, len(ordered))
	for i, item := range ordered {
		plan.Items[i] = PlannedItem{
			WorkItem:         item,
			CriticalPathMins: criticalPaths[item.ID],
			Readiness:        readiness[item.ID],
		}
	}

	p.logger.Debug("plan computed",
		slog.Int("items", len(plan.Items)),
		slog.Int("warnings", len(plan.Warnings)),
	)
	return plan
}

// evaluateGuard runs an item's CEL readiness guard. It returns held=true when
// the guard evaluates to false.
func (p *Planner) evaluateGuard(ctx context.Context, item schema.WorkItem, st State) (bool, error) {
	completed := make(map[string]any, len(st.Completed))
	for id, done := range st.Completed {
		if done {
			completed[id] = true
		}
	}

	pass, err := p.guards.EvaluateBool(ctx, item.Condition, map[string]any{
		"item":      itemEnv(item),
		"completed": completed,
		"now":       st.Now,
	})
	if err != nil {
		return false, err
	}
	return !pass, nil
}

// SortBySchedulingPriority returns a new slice ordered by the four-tier
// comparator; each tier applies only when the previous one ties:
//
//  1. Deadline proximity — deadlined items before undeadlined ones, and the
//     nearer deadline first when the gap exceeds 24 hours.
//  2. Async triggers first, to start external waits as early as possible.
//  3. Longer critical path first (when a critical-path map is supplied).
//  4. Higher priority score first.
//
// The sort is stable, so full ties keep their input order — determinism the
// UI and tests both rely on.
func SortBySchedulingPriority(items []schema.WorkItem, criticalPaths map[string]int) []schema.WorkItem {
	ordered := make([]schema.WorkItem, len(items))
	copy(ordered, items)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]

		// Tier 1: deadline proximity.
		switch {
		case a.Deadline != nil && b.Deadline == nil:
			return true
		case a.Deadline == nil && b.Deadline != nil:
			return false
		case a.Deadline != nil && b.Deadline != nil:
			gap := a.Deadline.Sub(*b.Deadline)
			if gap < 0 {
				gap = -gap
			}
			if gap > deadlineDecisiveGap {
				return a.Deadline.Before(*b.Deadline)
			}
		}

		// Tier 2: async triggers first.
		if a.IsAsyncTrigger != b.IsAsyncTrigger {
			return a.IsAsyncTrigger
		}

		// Tier 3: longer critical path first.
		if criticalPaths != nil {
			cpA, cpB := criticalPaths[a.ID], criticalPaths[b.ID]
			if cpA != cpB {
				return cpA > cpB
			}
		}

		// Tier 4: higher priority score first.
		return a.Priority > b.Priority
	})

	return ordered
}

// CheckDependencies evaluates whether an item can start given the completed
// set and known async end times. Every dependency is checked — no
// short-circuit — so MissingDependencies always reports the complete set.
func CheckDependencies(item schema.WorkItem, st State) schema.Readiness {
	if len(item.Dependencies) == 0 {
		return schema.Readiness{CanSchedule: true}
	}

	r := schema.Readiness{}
	var earliest time.Time

	for _, dep := range item.Dependencies {
		if st.Completed[dep] {
			continue
		}
		if end, ok := st.AsyncEndTimes[dep]; ok && end.After(st.Now) {
			r.WaitingOnAsync = true
			if end.After(earliest) {
				earliest = end
			}
			continue
		}
		if _, ok := st.AsyncEndTimes[dep]; ok {
			// Async effect already resolved; no constraint.
			continue
		}
		r.MissingDependencies = append(r.MissingDependencies, dep)
	}

	if len(r.MissingDependencies) > 0 {
		// A hard missing dependency makes the earliest start uncomputable.
		return r
	}
	if r.WaitingOnAsync {
		r.EarliestStart = &earliest
		return r
	}
	r.CanSchedule = true
	return r
}

// AsyncWaitItem is a placeholder schedule entry spanning the window where a
// trigger has started but its external effect has not resolved. It shares the
// trigger's priority and occupies the timeline without consuming work
// capacity.
type AsyncWaitItem struct {
	schema.WorkItem
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewAsyncWaitItem synthesizes the wait placeholder for a trigger item
// starting its external wait at start.
func NewAsyncWaitItem(item schema.WorkItem, start time.Time, waitMins int) AsyncWaitItem {
	return AsyncWaitItem{
		WorkItem: schema.WorkItem{
			ID:           item.ID + ":wait",
			Name:         item.Name + " (async wait)",
			Kind:         schema.WorkItemAsyncWait,
			DurationMins: waitMins,
			Priority:     item.Priority,
			SourceID:     item.ID,
		},
		Start: start,
		End:   start.Add(time.Duration(waitMins) * time.Minute),
	}
}

// itemEnv exposes a work item to guard expressions as a plain map.
func itemEnv(item schema.WorkItem) map[string]any {
	env := map[string]any{
		"id":                   item.ID,
		"name":                 item.Name,
		"kind":                 string(item.Kind),
		"duration_mins":        item.DurationMins,
		"priority":             item.Priority,
		"is_async_trigger":     item.IsAsyncTrigger,
		"async_wait_mins":      item.AsyncWaitMins,
		"cognitive_complexity": item.CognitiveComplexity,
	}
	if item.Deadline != nil {
		env["deadline"] = *item.Deadline
	}
	return env
}
