// Package depedit applies incremental dependency changes to a workflow's
// steps: forward edges (what a step waits on) and reverse edges (what waits
// on it). Application is idempotent and best-effort — unresolved names are
// reported, never silently dropped, and never abort sibling edits in the
// same request.
//
// The engine transforms a copy and returns it; callers persist the result
// and MUST re-run the dependency validator before saving, since edits are
// kept cheap and composable for batch application.
package depedit

import (
	"strings"

	"github.com/rvellido/taskweave/internal/graph"
	"github.com/rvellido/taskweave/pkg/schema"
)

// Result is the outcome of applying one DependencyChangeRequest.
type Result struct {
	Steps      []schema.WorkflowStep `json:"steps"`
	Changes    []schema.ChangeRecord `json:"changes"`
	Unresolved []string              `json:"unresolved,omitempty"`
}

// Apply resolves the request's target and edge names against the step set
// (exact, case-insensitive, trimmed match) and returns a new step collection
// with the edits applied. The input slice is never mutated. An unresolvable
// target is an error; unresolvable edge names are recorded per-name.
func Apply(steps []schema.WorkflowStep, req schema.DependencyChangeRequest) (*Result, error) {
	byName := indexByName(steps)

	targetIdx, ok := byName[normalizeName(req.Target)]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"no step named %q", req.Target)
	}

	out := copySteps(steps)
	target := &out[targetIdx]
	result := &Result{}

	// Forward edges: this step's own depends_on list.
	for _, name := range req.AddDependencies {
		idx, found := byName[normalizeName(name)]
		if !found {
			result.record(schema.ChangeAddDependency, name, "", schema.ChangeNotFound)
			continue
		}
		dep := out[idx].ID
		if containsID(target.DependsOn, dep) {
			result.record(schema.ChangeAddDependency, name, dep, schema.ChangeAlreadyPresent)
			continue
		}
		target.DependsOn = append(target.DependsOn, dep)
		result.record(schema.ChangeAddDependency, name, dep, schema.ChangeApplied)
	}

	for _, name := range req.RemoveDependencies {
		idx, found := byName[normalizeName(name)]
		if !found {
			result.record(schema.ChangeRemoveDependency, name, "", schema.ChangeNotFound)
			continue
		}
		dep := out[idx].ID
		if !containsID(target.DependsOn, dep) {
			result.record(schema.ChangeRemoveDependency, name, dep, schema.ChangeNotPresent)
			continue
		}
		target.DependsOn = removeID(target.DependsOn, dep)
		result.record(schema.ChangeRemoveDependency, name, dep, schema.ChangeRemoved)
	}

	// Reverse edges: other steps made to wait (or stop waiting) on this one.
	for _, name := range req.AddDependents {
		idx, found := byName[normalizeName(name)]
		if !found {
			result.record(schema.ChangeAddDependent, name, "", schema.ChangeNotFound)
			continue
		}
		dependent := &out[idx]
		if containsID(dependent.DependsOn, target.ID) {
			result.record(schema.ChangeAddDependent, name, dependent.ID, schema.ChangeAlreadyPresent)
			continue
		}
		dependent.DependsOn = append(dependent.DependsOn, target.ID)
		result.record(schema.ChangeAddDependent, name, dependent.ID, schema.ChangeApplied)
	}

	for _, name := range req.RemoveDependents {
		idx, found := byName[normalizeName(name)]
		if !found {
			result.record(schema.ChangeRemoveDependent, name, "", schema.ChangeNotFound)
			continue
		}
		dependent := &out[idx]
		if !containsID(dependent.DependsOn, target.ID) {
			result.record(schema.ChangeRemoveDependent, name, dependent.ID, schema.ChangeNotPresent)
			continue
		}
		dependent.DependsOn = removeID(dependent.DependsOn, target.ID)
		result.record(schema.ChangeRemoveDependent, name, dependent.ID, schema.ChangeRemoved)
	}

	result.Steps = out
	return result, nil
}

// WouldCreateCircularDependency reports whether adding the edge
// fromID → toID would close a cycle: true when the IDs are equal or when
// toID already reaches fromID through existing depends_on edges. Interactive
// dependency pickers use this for pre-emptive rejection instead of post-hoc
// validation.
func WouldCreateCircularDependency(fromID, toID string, steps []schema.WorkflowStep) bool {
	if fromID == toID {
		return true
	}
	adj := graph.BuildAdjacency(steps)
	return graph.TransitiveDependencies(toID, adj)[fromID]
}

func (r *Result) record(kind schema.ChangeKind, name, stepID string, outcome schema.ChangeOutcome) {
	r.Changes = append(r.Changes, schema.ChangeRecord{
		Kind: kind, Name: name, StepID: stepID, Outcome: outcome,
	})
	if outcome == schema.ChangeNotFound {
		r.Unresolved = append(r.Unresolved, name)
	}
}

// indexByName maps normalized step names to indices; the first occurrence of
// a duplicated name wins.
func indexByName(steps []schema.WorkflowStep) map[string]int {
	byName := make(map[string]int, len(steps))
	for i, s := range steps {
		key := normalizeName(s.Name)
		if _, exists := byName[key]; !exists {
			byName[key] = i
		}
	}
	return byName
}

// normalizeName implements the engine's resolution contract: exact match
// after trimming and case-folding, never substring or fuzzy.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func copySteps(steps []schema.WorkflowStep) []schema.WorkflowStep {
	out := make([]schema.WorkflowStep, len(steps))
	copy(out, steps)
	for i := range out {
		out[i].DependsOn = append([]string(nil), steps[i].DependsOn...)
	}
	return out
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
