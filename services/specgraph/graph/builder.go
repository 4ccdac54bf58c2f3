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

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Build constructs the dependency graph for a snapshot of the index.
//
// Description:
//
//	Seeds one node per distinct symbol path, then adds one edge per
//	resolved reference from its containing declaration to the resolved
//	symbol. Unresolved references add nothing; partial matches add a
//	single edge to the representative symbol. Edges are deduplicated by
//	(from, to) and self-loops are dropped. Cycles are then extracted and,
//	when there are none, a topological order is computed.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	r - The index snapshot. Must not be mutated during the build.
//	opts - Optional configuration.
//
// Outputs:
//
//	*DependencyGraph - The frozen graph.
//	error - ErrNilResolver, or ErrBuildCancelled if ctx is done.
//
// Thread Safety:
//
//	Safe for concurrent use provided r is not mutated concurrently.
func Build(ctx context.Context, r Resolver, opts ...BuildOption) (*DependencyGraph, error) {
	if r == nil {
		return nil, ErrNilResolver
	}
	options := DefaultBuildOptions()
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()
	symbols := r.AllSymbols()
	refs := r.AllReferences()

	ctx, span := startBuildSpan(ctx, len(symbols), len(refs))
	defer span.End()

	g := &DependencyGraph{
		nodeSet:      make(map[string]bool, len(symbols)),
		edgeIndex:    make(map[edgeKey]int),
		dependencies: make(map[string][]string),
		dependents:   make(map[string][]string),
	}

	for _, s := range symbols {
		g.addNode(s.Path)
	}

	for i, ref := range refs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				recordBuildMetrics(ctx, time.Since(start), nil, false)
				return nil, fmt.Errorf("%w: %v", ErrBuildCancelled, err)
			}
		}
		res := r.ResolveReference(ref)
		if !res.Resolved() {
			continue
		}
		g.addEdge(Edge{
			From:      ref.ContainingPath,
			To:        res.Symbol.Path,
			Reference: ref,
			URI:       ref.URI,
		})
	}
	g.freeze()

	g.cycles = g.findCycles()
	if len(g.cycles) == 0 {
		g.topologicalOrder = g.kahnOrder()
	} else {
		g.topologicalOrder = []string{}
	}

	setBuildSpanResult(span, g)
	recordBuildMetrics(ctx, time.Since(start), g, true)
	options.Logger.Debug("dependency graph built",
		slog.Int("nodes", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("cycles", len(g.cycles)),
		slog.Duration("duration", time.Since(start)),
	)

	return g, nil
}

func (g *DependencyGraph) addNode(path string) {
	if g.nodeSet[path] {
		return
	}
	g.nodeSet[path] = true
	g.nodes = append(g.nodes, path)
}

func (g *DependencyGraph) addEdge(e Edge) {
	if e.From == e.To {
		return
	}
	key := edgeKey{from: e.From, to: e.To}
	if _, exists := g.edgeIndex[key]; exists {
		return
	}
	g.addNode(e.From)
	g.addNode(e.To)

	g.edgeIndex[key] = len(g.edges)
	g.edges = append(g.edges, e)
	g.dependencies[e.From] = append(g.dependencies[e.From], e.To)
	g.dependents[e.To] = append(g.dependents[e.To], e.From)
}

// freeze sorts the node list and every adjacency set so traversals are
// deterministic.
func (g *DependencyGraph) freeze() {
	sort.Strings(g.nodes)
	for _, deps := range g.dependencies {
		sort.Strings(deps)
	}
	for _, deps := range g.dependents {
		sort.Strings(deps)
	}
}

// findCycles runs an iterative depth-first search from every unvisited
// node, keeping the current path as a recursion stack. An edge into a
// node on the path closes a candidate cycle; candidates are
// deduplicated by their rotation-normalized node sequence.
func (g *DependencyGraph) findCycles() []Cycle {
	type frame struct {
		node string
		next int
	}

	cycles := []Cycle{}
	seen := make(map[string]bool)
	visited := make(map[string]bool, len(g.nodes))
	onPath := make(map[string]int)
	var path []string

	for _, root := range g.nodes {
		if visited[root] {
			continue
		}
		visited[root] = true
		onPath[root] = 0
		path = append(path[:0], root)
		stack := []frame{{node: root}}

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			deps := g.dependencies[f.node]

			if f.next < len(deps) {
				next := deps[f.next]
				f.next++

				if pos, ok := onPath[next]; ok {
					nodes := normalizeCycle(path[pos:])
					key := strings.Join(nodes, "\x00")
					if !seen[key] {
						seen[key] = true
						cycles = append(cycles, g.closeCycle(nodes))
					}
					continue
				}
				if !visited[next] {
					visited[next] = true
					onPath[next] = len(path)
					path = append(path, next)
					stack = append(stack, frame{node: next})
				}
				continue
			}

			delete(onPath, f.node)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return cycles
}

// closeCycle turns a normalized node sequence into a closed Cycle with
// its edges.
func (g *DependencyGraph) closeCycle(nodes []string) Cycle {
	closed := make([]string, 0, len(nodes)+1)
	closed = append(closed, nodes...)
	closed = append(closed, nodes[0])

	edges := make([]Edge, 0, len(nodes))
	for i := 0; i+1 < len(closed); i++ {
		if idx, ok := g.edgeIndex[edgeKey{from: closed[i], to: closed[i+1]}]; ok {
			edges = append(edges, g.edges[idx])
		}
	}
	return Cycle{Nodes: closed, Edges: edges}
}

// normalizeCycle rotates a cycle to start with the lexicographically
// smallest path, so the same cycle found from different entry points
// compares equal. The result never aliases the input.
func normalizeCycle(cycle []string) []string {
	result := make([]string, len(cycle))
	if len(cycle) == 0 {
		return result
	}

	minIdx := 0
	for i, p := range cycle {
		if p < cycle[minIdx] {
			minIdx = i
		}
	}
	for i := range cycle {
		result[i] = cycle[(minIdx+i)%len(cycle)]
	}
	return result
}

// kahnOrder returns dependencies before dependents.
//
// A node's remaining count is the number of paths it depends on. Nodes
// at zero are emitted first; emitting a node decrements every dependent.
// Ties are broken by path order. Only meaningful on an acyclic graph.
func (g *DependencyGraph) kahnOrder() []string {
	remaining := make(map[string]int, len(g.nodes))
	queue := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		remaining[n] = len(g.dependencies[n])
		if remaining[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		for _, dependent := range g.dependents[n] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	return order
}
