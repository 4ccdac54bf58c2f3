// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds the dependency graph between requirement-DSL
// declarations.
//
// Nodes are symbol paths and a directed edge "from → to" means the
// declaration at from depends on the one at to. The graph is built in a
// single pass from a snapshot of the workspace index, then frozen.
//
// # Ownership Model
//
// A DependencyGraph is derived data. It is never patched after Build
// returns; a changed index requires a new build. Cycles store path
// values, never references into the graph.
//
// # Thread Safety
//
// A built DependencyGraph is immutable and safe for concurrent reads.
// Accessors that return slices return copies.
package graph

import (
	"log/slog"

	"github.com/AleutianAI/specgraph/services/specgraph/index"
	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
)

// Resolver is the read-only view of the workspace index the builder needs.
//
// *index.WorkspaceIndex implements Resolver.
type Resolver interface {
	// AllSymbols returns every indexed symbol.
	AllSymbols() []*symtab.Symbol

	// AllReferences returns every tracked depends-on reference.
	AllReferences() []symtab.Reference

	// ResolveReference resolves a reference to its target symbol(s).
	ResolveReference(ref symtab.Reference) index.Resolution
}

// Edge is a deduplicated dependency between two symbol paths.
type Edge struct {
	// From is the path of the declaration that states the dependency.
	From string `json:"from"`

	// To is the path of the resolved target. For a partial match this is
	// the representative symbol returned by the resolver.
	To string `json:"to"`

	// Reference is the first reference that produced this edge.
	Reference symtab.Reference `json:"reference"`

	// URI is the file that declares Reference.
	URI string `json:"uri"`
}

// Cycle is a closed walk [p0, p1, ..., pk, p0] in the edge set.
//
// Nodes is rotated so that p0 is the lexicographically smallest path of
// the cycle. Edges lists the edge for each consecutive pair.
type Cycle struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Contains reports whether the cycle passes through path.
func (c Cycle) Contains(path string) bool {
	for _, n := range c.Nodes {
		if n == path {
			return true
		}
	}
	return false
}

// Len returns the number of distinct nodes in the cycle.
func (c Cycle) Len() int {
	if len(c.Nodes) == 0 {
		return 0
	}
	return len(c.Nodes) - 1
}

// DependencyGraph is an immutable dependency graph over symbol paths.
//
// Nodes and adjacency are stored as an arena keyed by path: each node
// owns sorted sets of the paths it depends on and the paths depending on
// it.
type DependencyGraph struct {
	nodes     []string
	nodeSet   map[string]bool
	edges     []Edge
	edgeIndex map[edgeKey]int

	dependencies map[string][]string
	dependents   map[string][]string

	cycles           []Cycle
	topologicalOrder []string
}

// edgeKey identifies an edge for deduplication.
type edgeKey struct {
	from, to string
}

// BuildOptions configures Build.
type BuildOptions struct {
	// Logger receives a debug event per build.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultBuildOptions returns the default options.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{Logger: slog.Default()}
}

// BuildOption is a functional option for configuring Build.
type BuildOption func(*BuildOptions)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *BuildOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
