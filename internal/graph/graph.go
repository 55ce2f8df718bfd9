// Package graph provides generic directed-graph primitives over any node
// exposing an ID and a list of dependency IDs: adjacency construction,
// topological sorting, cycle detection, critical-path lengths, and
// reachability queries. It carries no domain semantics; the planner and
// validator layer those on top.
package graph

import "fmt"

// Node is the minimal contract for a graph participant. Dependency IDs may
// reference nodes outside the current set; each primitive documents how such
// references are treated.
type Node interface {
	NodeID() string
	NodeDependencies() []string
}

// WeightedNode additionally exposes a non-negative weight in minutes, used
// for critical-path arithmetic.
type WeightedNode interface {
	Node
	NodeWeight() int
}

// Adjacency is an insertion-ordered adjacency list: node ID to dependency
// IDs. Iteration order over IDs is the order nodes were added, which keeps
// cycle detection deterministic.
type Adjacency struct {
	ids   []string
	edges map[string][]string
}

// NewAdjacency returns an empty adjacency list.
func NewAdjacency() *Adjacency {
	return &Adjacency{edges: make(map[string][]string)}
}

// Add registers a node and a copy of its dependency list. Re-adding an ID
// replaces its edges without changing its position.
func (a *Adjacency) Add(id string, deps []string) {
	if _, ok := a.edges[id]; !ok {
		a.ids = append(a.ids, id)
	}
	cp := make([]string, len(deps))
	copy(cp, deps)
	a.edges[id] = cp
}

// IDs returns node IDs in insertion order.
func (a *Adjacency) IDs() []string { return a.ids }

// Edges returns the dependency IDs recorded for a node.
func (a *Adjacency) Edges(id string) []string { return a.edges[id] }

// Has reports whether the node is present.
func (a *Adjacency) Has(id string) bool {
	_, ok := a.edges[id]
	return ok
}

// Len returns the number of nodes.
func (a *Adjacency) Len() int { return len(a.ids) }

// BuildAdjacency copies each item's dependency list under its ID. It performs
// no validation: out-of-set and duplicate references are preserved as given.
func BuildAdjacency[N Node](items []N) *Adjacency {
	adj := NewAdjacency()
	for _, it := range items {
		adj.Add(it.NodeID(), it.NodeDependencies())
	}
	return adj
}

// TopologicalSort orders items so that every in-set dependency precedes its
// dependents (Kahn's algorithm). Dependencies referencing IDs outside the
// input set do not constrain the ordering, but every such occurrence is
// reported as a warning. Zero-in-degree items are seeded in input order, so
// ties break by original list position.
//
// If the input contains a cycle, the returned slice is a copy of the input in
// its original order and a warning is emitted; callers that need to
// distinguish "no cycle" from "fallback" run DetectCycles separately.
func TopologicalSort[N Node](items []N) ([]N, []string) {
	var warnings []string

	index := make(map[string]int, len(items))
	for i, it := range items {
		if _, dup := index[it.NodeID()]; !dup {
			index[it.NodeID()] = i
		}
	}

	// In-degree counts only in-set dependencies; reverse edges are built in
	// input order so dequeue order stays deterministic.
	inDegree := make([]int, len(items))
	dependents := make([][]int, len(items))
	for i, it := range items {
		seen := make(map[string]bool, len(it.NodeDependencies()))
		for _, dep := range it.NodeDependencies() {
			j, ok := index[dep]
			if !ok {
				warnings = append(warnings,
					fmt.Sprintf("item %q depends on %q which is not in the input set", it.NodeID(), dep))
				continue
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(items))
	for i := range items {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	sorted := make([]N, 0, len(items))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		sorted = append(sorted, items[i])
		for _, j := range dependents[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(sorted) != len(items) {
		warnings = append(warnings, "dependency cycle detected; items returned in original order")
		fallback := make([]N, len(items))
		copy(fallback, items)
		return fallback, warnings
	}

	return sorted, warnings
}

// CycleReport is the outcome of cycle detection.
type CycleReport struct {
	HasCycle bool
	Cycles   [][]string // each cycle closed by repeating the entry node
}

// DetectCycles finds dependency cycles via depth-first search with an
// explicit stack. When an edge leads back into the current recursion stack,
// the cycle is extracted as the suffix of the path from the revisited node
// onward, closed by re-appending that node. DFS roots follow the adjacency
// insertion order, so output is deterministic. Edges to unknown IDs are
// ignored.
func DetectCycles(adj *Adjacency) CycleReport {
	const (
		white = iota // unvisited
		gray         // on the recursion stack
		black        // finished
	)

	report := CycleReport{}
	color := make(map[string]int, adj.Len())

	type frame struct {
		id   string
		next int // index into Edges(id)
	}

	for _, root := range adj.IDs() {
		if color[root] != white {
			continue
		}

		stack := []frame{{id: root}}
		path := []string{root}
		color[root] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := adj.Edges(top.id)

			if top.next >= len(edges) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}

			dep := edges[top.next]
			top.next++

			if !adj.Has(dep) {
				continue
			}
			switch color[dep] {
			case gray:
				// Back-edge: the cycle is the path suffix from dep onward.
				start := 0
				for i, id := range path {
					if id == dep {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				cycle = append(cycle, path[start:]...)
				cycle = append(cycle, dep)
				report.Cycles = append(report.Cycles, cycle)
				report.HasCycle = true
			case white:
				color[dep] = gray
				stack = append(stack, frame{id: dep})
				path = append(path, dep)
			}
		}
	}

	return report
}

// CriticalPaths computes, for every item, the length of the longest weighted
// dependency chain ending at it: its own weight plus the maximum among its
// in-set dependencies. Memoized and iterative, so chain depth is bounded only
// by memory. An item participating in a cycle contributes no dependency
// weight beyond its own (the on-stack guard breaks the loop); callers wanting
// to reject cyclic input run DetectCycles first.
func CriticalPaths[N WeightedNode](items []N) map[string]int {
	byID := make(map[string]N, len(items))
	for _, it := range items {
		if _, dup := byID[it.NodeID()]; !dup {
			byID[it.NodeID()] = it
		}
	}

	memo := make(map[string]int, len(items))
	onStack := make(map[string]bool, len(items))

	type frame struct {
		id   string
		next int
		best int
	}

	for _, root := range items {
		if _, done := memo[root.NodeID()]; done {
			continue
		}

		stack := []frame{{id: root.NodeID()}}
		onStack[root.NodeID()] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := byID[top.id]
			deps := node.NodeDependencies()

			advanced := false
			for top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				depNode, ok := byID[dep]
				if !ok || onStack[dep] {
					continue // out-of-set or cycle back-edge: contributes 0
				}
				if v, done := memo[dep]; done {
					if v > top.best {
						top.best = v
					}
					continue
				}
				stack = append(stack, frame{id: depNode.NodeID()})
				onStack[dep] = true
				advanced = true
				break
			}
			if advanced {
				continue
			}
			if top.next >= len(deps) {
				total := node.NodeWeight() + top.best
				memo[top.id] = total
				delete(onStack, top.id)
				stack = stack[:len(stack)-1]
				if len(stack) > 0 {
					parent := &stack[len(stack)-1]
					if total > parent.best {
						parent.best = total
					}
				}
			}
		}
	}

	result := make(map[string]int, len(items))
	for _, it := range items {
		result[it.NodeID()] = memo[it.NodeID()]
	}
	return result
}

// CriticalPath returns the longest weighted dependency chain across the whole
// item set, i.e. the worst-case serial duration. Same cycle precondition as
// CriticalPaths.
func CriticalPath[N WeightedNode](items []N) int {
	longest := 0
	for _, v := range CriticalPaths(items) {
		if v > longest {
			longest = v
		}
	}
	return longest
}

// TransitiveDependencies returns every ID reachable from id through
// dependency edges, excluding id itself unless a cycle leads back to it.
func TransitiveDependencies(id string, adj *Adjacency) map[string]bool {
	reached := make(map[string]bool)
	stack := append([]string(nil), adj.Edges(id)...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[cur] || !adj.Has(cur) {
			continue
		}
		reached[cur] = true
		stack = append(stack, adj.Edges(cur)...)
	}
	return reached
}

// Dependents returns every item that transitively depends on id, used for
// impact analysis before removing a node or edge.
func Dependents[N Node](id string, items []N) map[string]bool {
	reverse := make(map[string][]string, len(items))
	for _, it := range items {
		for _, dep := range it.NodeDependencies() {
			reverse[dep] = append(reverse[dep], it.NodeID())
		}
	}

	reached := make(map[string]bool)
	stack := append([]string(nil), reverse[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[cur] {
			continue
		}
		reached[cur] = true
		stack = append(stack, reverse[cur]...)
	}
	return reached
}
