// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "sort"

// Nodes returns every node path, sorted.
func (g *DependencyGraph) Nodes() []string {
	return copyStrings(g.nodes)
}

// HasNode reports whether path is a node of the graph.
func (g *DependencyGraph) HasNode(path string) bool {
	return g.nodeSet[path]
}

// NodeCount returns the number of nodes.
func (g *DependencyGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of deduplicated edges.
func (g *DependencyGraph) EdgeCount() int {
	return len(g.edges)
}

// Edges returns every edge in the order it was added.
func (g *DependencyGraph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// EdgesFromFile returns the edges whose reference is declared in uri.
func (g *DependencyGraph) EdgesFromFile(uri string) []Edge {
	edges := []Edge{}
	for _, e := range g.edges {
		if e.URI == uri {
			edges = append(edges, e)
		}
	}
	return edges
}

// EdgeBetween returns the edge from → to, if any.
func (g *DependencyGraph) EdgeBetween(from, to string) (Edge, bool) {
	idx, ok := g.edgeIndex[edgeKey{from: from, to: to}]
	if !ok {
		return Edge{}, false
	}
	return g.edges[idx], true
}

// Cycles returns the distinct cycles found at build time.
func (g *DependencyGraph) Cycles() []Cycle {
	cycles := make([]Cycle, len(g.cycles))
	copy(cycles, g.cycles)
	return cycles
}

// IsAcyclic reports whether the graph has no cycles.
func (g *DependencyGraph) IsAcyclic() bool {
	return len(g.cycles) == 0
}

// TopologicalOrder returns every node with dependencies before their
// dependents. It is empty when the graph has cycles.
func (g *DependencyGraph) TopologicalOrder() []string {
	return copyStrings(g.topologicalOrder)
}

// GetDependencies returns the sorted paths path depends on directly.
func (g *DependencyGraph) GetDependencies(path string) []string {
	return copyStrings(g.dependencies[path])
}

// GetDependents returns the sorted paths depending directly on path.
func (g *DependencyGraph) GetDependents(path string) []string {
	return copyStrings(g.dependents[path])
}

// GetTransitiveDependencies returns every path reachable from path over
// dependency edges, excluding path itself, sorted.
func (g *DependencyGraph) GetTransitiveDependencies(path string) []string {
	return reachable(path, g.dependencies)
}

// GetTransitiveDependents returns every path that reaches path over
// dependency edges, excluding path itself, sorted.
func (g *DependencyGraph) GetTransitiveDependents(path string) []string {
	return reachable(path, g.dependents)
}

// IsInCycle reports whether path lies on any cycle found at build time.
func (g *DependencyGraph) IsInCycle(path string) bool {
	return IsInCycle(path, g.cycles)
}

// CyclesContaining returns the cycles passing through path.
func (g *DependencyGraph) CyclesContaining(path string) []Cycle {
	out := []Cycle{}
	for _, c := range g.cycles {
		if c.Contains(path) {
			out = append(out, c)
		}
	}
	return out
}

// IsInCycle reports whether path lies on any of the given cycles.
func IsInCycle(path string, cycles []Cycle) bool {
	for _, c := range cycles {
		if c.Contains(path) {
			return true
		}
	}
	return false
}

// reachable runs a breadth-first search over adj from start.
func reachable(start string, adj map[string][]string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	result := []string{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adj[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			result = append(result, next)
			queue = append(queue, next)
		}
	}

	sort.Strings(result)
	return result
}

func copyStrings(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}
