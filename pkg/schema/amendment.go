package schema

// DependencyChangeRequest describes an edit to one step's dependency edges.
// Names are resolved against the sibling step set by exact, case-insensitive,
// trimmed match at apply time; unresolved names are reported, never dropped.
type DependencyChangeRequest struct {
	Target             string   `json:"target"` // step name being changed
	AddDependencies    []string `json:"add_dependencies,omitempty"`
	RemoveDependencies []string `json:"remove_dependencies,omitempty"`
	AddDependents      []string `json:"add_dependents,omitempty"`
	RemoveDependents   []string `json:"remove_dependents,omitempty"`
}

// ChangeOutcome is the per-edge result of applying one dependency change.
type ChangeOutcome string

const (
	ChangeApplied        ChangeOutcome = "applied"
	ChangeRemoved        ChangeOutcome = "removed"
	ChangeAlreadyPresent ChangeOutcome = "already_present"
	ChangeNotPresent     ChangeOutcome = "not_present"
	ChangeNotFound       ChangeOutcome = "not_found"
)

// ChangeKind enumerates the four edge operations in a change request.
type ChangeKind string

const (
	ChangeAddDependency    ChangeKind = "add_dependency"
	ChangeRemoveDependency ChangeKind = "remove_dependency"
	ChangeAddDependent     ChangeKind = "add_dependent"
	ChangeRemoveDependent  ChangeKind = "remove_dependent"
)

// ChangeRecord traces a single requested edge change so callers can tell
// "nothing to do" apart from "target not found" apart from "applied".
type ChangeRecord struct {
	Kind    ChangeKind    `json:"kind"`
	Name    string        `json:"name"`              // requested name, as given
	StepID  string        `json:"step_id,omitempty"` // resolved step, when found
	Outcome ChangeOutcome `json:"outcome"`
}
