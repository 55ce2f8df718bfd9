package diagram

import (
	"github.com/rvellido/taskweave/internal/graph"
	"github.com/rvellido/taskweave/internal/planner"
	"github.com/rvellido/taskweave/pkg/schema"
)

// Build constructs a DiagramModel from a computed plan. Nodes keep the
// plan's scheduling order; virtual start and end nodes bracket the graph so
// roots and leaves are visible in every renderer.
func Build(title string, plan *planner.Plan) *DiagramModel {
	nodes := make([]*Node, 0, len(plan.Items)+2)
	nodeIndex := make(map[string]*Node, len(plan.Items))

	startNode := &Node{ID: "__start__", Label: "Start", Kind: NodeKindStart}
	nodes = append(nodes, startNode)

	for i := range plan.Items {
		node := itemToNode(&plan.Items[i])
		if _, dup := nodeIndex[node.ID]; dup {
			continue
		}
		nodes = append(nodes, node)
		nodeIndex[node.ID] = node
	}

	endNode := &Node{ID: "__end__", Label: "End", Kind: NodeKindEnd}
	nodes = append(nodes, endNode)

	return &DiagramModel{
		Title:  title,
		Nodes:  nodes,
		Edges:  buildEdges(plan, nodeIndex),
		Levels: buildLevels(plan),
	}
}

// itemToNode maps a planned item to a diagram Node.
func itemToNode(item *planner.PlannedItem) *Node {
	return &Node{
		ID:    item.ID,
		Label: item.Name,
		Kind:  itemKind(item.WorkItem),
		Status: &StatusOverlay{
			Status:           itemStatus(item.Readiness),
			DurationMins:     item.DurationMins,
			CriticalPathMins: item.CriticalPathMins,
			MissingDeps:      item.Readiness.MissingDependencies,
		},
	}
}

func itemKind(item schema.WorkItem) NodeKind {
	if item.IsAsyncTrigger {
		return NodeKindTrigger
	}
	if item.Kind == schema.WorkItemStep {
		return NodeKindStep
	}
	return NodeKindTask
}

// itemStatus collapses readiness into one display status.
func itemStatus(r schema.Readiness) string {
	switch {
	case r.CanSchedule:
		return "ready"
	case r.WaitingOnAsync:
		return "waiting_async"
	case r.GuardHeld:
		return "guard_held"
	default:
		return "blocked"
	}
}

// buildEdges draws dependency edges plus virtual start and end edges.
// Dependencies on IDs outside the plan are skipped; the planner already
// reported them as warnings.
func buildEdges(plan *planner.Plan, nodeIndex map[string]*Node) []Edge {
	var edges []Edge
	hasDependents := make(map[string]bool, len(plan.Items))

	for i := range plan.Items {
		item := &plan.Items[i]
		inSet := 0
		for _, dep := range item.Dependencies {
			if _, ok := nodeIndex[dep]; !ok {
				continue
			}
			edges = append(edges, Edge{From: dep, To: item.ID})
			hasDependents[dep] = true
			inSet++
		}
		if inSet == 0 {
			edges = append(edges, Edge{From: "__start__", To: item.ID})
		}
	}

	for i := range plan.Items {
		if !hasDependents[plan.Items[i].ID] {
			edges = append(edges, Edge{From: plan.Items[i].ID, To: "__end__"})
		}
	}

	return edges
}

// buildLevels groups items by dependency depth: an item sits one level below
// its deepest in-set dependency. Cycle members fall back to level zero, which
// matches the planner's cycle fallback ordering.
func buildLevels(plan *planner.Plan) [][]string {
	items := make([]schema.WorkItem, len(plan.Items))
	for i := range plan.Items {
		items[i] = plan.Items[i].WorkItem
	}
	adj := graph.BuildAdjacency(items)

	depth := make(map[string]int, len(items))
	onStack := make(map[string]bool, len(items))

	var walk func(id string) int
	walk = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		if onStack[id] {
			return -1 // cycle back-edge
		}
		onStack[id] = true
		d := 0
		for _, dep := range adj.Edges(id) {
			if !adj.Has(dep) {
				continue
			}
			if dd := walk(dep); dd+1 > d {
				d = dd + 1
			}
		}
		delete(onStack, id)
		depth[id] = d
		return d
	}

	maxDepth := 0
	for _, id := range adj.IDs() {
		if d := walk(id); d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, 0, maxDepth+3)
	levels = append(levels, []string{"__start__"})
	byDepth := make([][]string, maxDepth+1)
	for _, id := range adj.IDs() {
		d := depth[id]
		byDepth[d] = append(byDepth[d], id)
	}
	for _, ids := range byDepth {
		if len(ids) > 0 {
			levels = append(levels, ids)
		}
	}
	levels = append(levels, []string{"__end__"})
	return levels
}
