// Package graph provides the table dependency graph: an edge parent -> child
// means the child table holds a foreign key referencing the parent's
// primary key. It supports cycle detection and a deterministic topological
// order whose tie-break is declaration order.
package graph

import (
	"fmt"
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// Graph is a directed graph over tables.
type Graph struct {
	nodes    []catalog.TableID
	position map[catalog.TableID]int
	children map[catalog.TableID][]catalog.TableID
	parents  map[catalog.TableID][]catalog.TableID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		position: make(map[catalog.TableID]int),
		children: make(map[catalog.TableID][]catalog.TableID),
		parents:  make(map[catalog.TableID][]catalog.TableID),
	}
}

// AddNode adds a table. Declaration order is the order of first addition.
func (g *Graph) AddNode(id catalog.TableID) {
	if _, exists := g.position[id]; exists {
		return
	}
	g.position[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
}

// AddEdge records that child depends on parent.
func (g *Graph) AddEdge(parent, child catalog.TableID) error {
	if _, exists := g.position[parent]; !exists {
		return fmt.Errorf("parent table %s does not exist", parent)
	}
	if _, exists := g.position[child]; !exists {
		return fmt.Errorf("child table %s does not exist", child)
	}
	if parent == child {
		return fmt.Errorf("self-loop detected: %s", parent)
	}

	if !contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

// Nodes returns every table in declaration order.
func (g *Graph) Nodes() []catalog.TableID {
	out := make([]catalog.TableID, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Parents returns the tables id depends on.
func (g *Graph) Parents(id catalog.TableID) []catalog.TableID {
	return g.parents[id]
}

// Children returns the tables that depend on id.
func (g *Graph) Children(id catalog.TableID) []catalog.TableID {
	return g.children[id]
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []catalog.TableID) {
	visited := make(map[catalog.TableID]bool)
	onStack := make(map[catalog.TableID]bool)
	var stack []catalog.TableID
	var cycle []catalog.TableID

	var dfs func(id catalog.TableID) bool
	dfs = func(id catalog.TableID) bool {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, child := range g.children[id] {
			if !visited[child] {
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				for i, s := range stack {
					if s == child {
						cycle = append(append([]catalog.TableID{}, stack[i:]...), child)
						break
					}
				}
				return true
			}
		}

		onStack[id] = false
		stack = stack[:len(stack)-1]
		return false
	}

	for _, id := range g.nodes {
		if !visited[id] && dfs(id) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns tables with every parent before its children.
// Among tables that are ready at the same time the earliest declared wins,
// so the order is stable across runs.
func (g *Graph) TopologicalSort() ([]catalog.TableID, error) {
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %s", formatPath(path))
	}

	indegree := make(map[catalog.TableID]int, len(g.nodes))
	for _, id := range g.nodes {
		indegree[id] = len(g.parents[id])
	}
	done := make(map[catalog.TableID]bool, len(g.nodes))

	result := make([]catalog.TableID, 0, len(g.nodes))
	for len(result) < len(g.nodes) {
		next := -1
		for i, id := range g.nodes {
			if !done[id] && indegree[id] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("no ready table after %d of %d", len(result), len(g.nodes))
		}
		id := g.nodes[next]
		done[id] = true
		result = append(result, id)
		for _, child := range g.children[id] {
			indegree[child]--
		}
	}
	return result, nil
}

// Descendants returns every table that transitively depends on id, in
// declaration order.
func (g *Graph) Descendants(id catalog.TableID) []catalog.TableID {
	seen := make(map[catalog.TableID]bool)
	var walk func(catalog.TableID)
	walk = func(n catalog.TableID) {
		for _, child := range g.children[n] {
			if !seen[child] {
				seen[child] = true
				walk(child)
			}
		}
	}
	walk(id)

	var out []catalog.TableID
	for _, n := range g.nodes {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out
}

func formatPath(path []catalog.TableID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = id.String()
	}
	return strings.Join(parts, " -> ")
}

func contains(ids []catalog.TableID, id catalog.TableID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
