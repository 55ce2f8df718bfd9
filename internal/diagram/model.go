// Package diagram renders a computed plan as a dependency diagram, either
// Mermaid flowchart syntax or a plain text level layout.
package diagram

// NodeKind classifies a diagram node by the work item that produced it.
type NodeKind string

const (
	NodeKindTask    NodeKind = "task"
	NodeKindStep    NodeKind = "step"
	NodeKindTrigger NodeKind = "trigger"
	NodeKindStart   NodeKind = "start"
	NodeKindEnd     NodeKind = "end"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single work item in the diagram.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries scheduling state for a node.
type StatusOverlay struct {
	Status           string // ready, waiting_async, guard_held, blocked
	DurationMins     int
	CriticalPathMins int
	MissingDeps      []string
}

// Edge represents a dependency between two nodes, drawn from the
// dependency to the item that waits on it.
type Edge struct {
	From  string
	To    string
	Label string
}
