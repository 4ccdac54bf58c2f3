// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/specgraph/services/specgraph/ast/asttest"
	"github.com/AleutianAI/specgraph/services/specgraph/index"
)

const (
	fileA = "file:///specs/a.req"
	fileB = "file:///specs/b.req"
)

func buildGraph(t *testing.T, idx *index.WorkspaceIndex) *DependencyGraph {
	t.Helper()
	g, err := Build(context.Background(), idx)
	require.NoError(t, err)
	require.NotNil(t, g)
	return g
}

func TestBuild_CycleRoundTrip(t *testing.T) {
	idx := index.NewWorkspaceIndex()
	idx.AddFile(fileA, asttest.File(
		asttest.Module("A", asttest.DependsOn("B")),
		asttest.Module("B", asttest.DependsOn("C")),
		asttest.Module("C", asttest.DependsOn("A")),
	))

	g := buildGraph(t, idx)

	assert.False(t, g.IsAcyclic())
	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, cycles[0].Nodes)
	assert.Equal(t, 3, cycles[0].Len())
	require.Len(t, cycles[0].Edges, 3)
	assert.Equal(t, "C", cycles[0].Edges[2].From)
	assert.Equal(t, "A", cycles[0].Edges[2].To)
	assert.Empty(t, g.TopologicalOrder())
	assert.NotNil(t, g.TopologicalOrder())

	for _, p := range []string{"A", "B", "C"} {
		assert.True(t, g.IsInCycle(p), p)
	}
}

func TestBuild_CycleDeduplication(t *testing.T) {
	idx := index.NewWorkspaceIndex()
	// Two roots reach the same loop from different entry points.
	idx.AddFile(fileA, asttest.File(
		asttest.Module("entry-one", asttest.DependsOn("y")),
		asttest.Module("entry-two", asttest.DependsOn("z")),
		asttest.Module("x", asttest.DependsOn("y")),
		asttest.Module("y", asttest.DependsOn("z")),
		asttest.Module("z", asttest.DependsOn("x")),
	))

	g := buildGraph(t, idx)

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"x", "y", "z", "x"}, cycles[0].Nodes)
	assert.False(t, g.IsInCycle("entry-one"))
	assert.Len(t, g.CyclesContaining("y"), 1)
	assert.Empty(t, g.CyclesContaining("entry-two"))
}

func TestBuild_DistinctCycles(t *testing.T) {
	idx := index.NewWorkspaceIndex()
	idx.AddFile(fileA, asttest.File(
		asttest.Module("a", asttest.DependsOn("b")),
		asttest.Module("b", asttest.DependsOn("a", "c")),
		asttest.Module("c", asttest.DependsOn("b")),
	))

	g := buildGraph(t, idx)

	cycles := g.Cycles()
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0].Nodes)
	assert.Equal(t, []string{"b", "c", "b"}, cycles[1].Nodes)
}

func TestBuild_TopologicalOrder(t *testing.T) {
	t.Run("dependency precedes dependent", func(t *testing.T) {
		idx := index.NewWorkspaceIndex()
		idx.AddFile(fileA, asttest.File(
			asttest.Module("A", asttest.DependsOn("B")),
			asttest.Module("B"),
		))

		g := buildGraph(t, idx)

		assert.True(t, g.IsAcyclic())
		assert.Equal(t, []string{"B", "A"}, g.TopologicalOrder())
	})

	t.Run("every edge respected", func(t *testing.T) {
		idx := index.NewWorkspaceIndex()
		idx.AddFile(fileA, asttest.File(
			asttest.Module("app", asttest.DependsOn("auth", "billing")),
			asttest.Module("auth", asttest.DependsOn("platform")),
			asttest.Module("billing", asttest.DependsOn("platform", "auth")),
			asttest.Module("platform"),
			asttest.Module("isolated"),
		))

		g := buildGraph(t, idx)
		order := g.TopologicalOrder()
		require.Len(t, order, g.NodeCount())

		pos := make(map[string]int, len(order))
		for i, p := range order {
			pos[p] = i
		}
		for _, e := range g.Edges() {
			assert.Less(t, pos[e.To], pos[e.From], "%s must precede %s", e.To, e.From)
		}
	})
}

func TestBuild_Edges(t *testing.T) {
	idx := index.NewWorkspaceIndex()
	idx.AddFile(fileA, asttest.File(
		asttest.Module("auth",
			asttest.DependsOn("auth", "billing", "billing", "missing.path"),
			asttest.Feature("login",
				asttest.DependsOn("billing.invoices"),
				asttest.Constraint("c1", asttest.DependsOn("billing")),
			),
		),
	))
	idx.AddFile(fileB, asttest.File(
		asttest.Module("billing",
			asttest.Feature("invoices"),
		),
	))

	g := buildGraph(t, idx)

	t.Run("nodes seeded from symbols", func(t *testing.T) {
		assert.Equal(t, 5, g.NodeCount())
		assert.True(t, g.HasNode("auth.login.c1"))
		assert.Empty(t, g.GetDependencies("auth.login.c1"))
	})

	t.Run("self loops dropped and pairs deduplicated", func(t *testing.T) {
		assert.Equal(t, 2, g.EdgeCount())
		assert.Equal(t, []string{"billing"}, g.GetDependencies("auth"))
		_, ok := g.EdgeBetween("auth", "auth")
		assert.False(t, ok)
	})

	t.Run("unresolved references add no edge", func(t *testing.T) {
		assert.False(t, g.HasNode("missing.path"))
	})

	t.Run("edge records its reference", func(t *testing.T) {
		e, ok := g.EdgeBetween("auth.login", "billing.invoices")
		require.True(t, ok)
		assert.Equal(t, fileA, e.URI)
		assert.Equal(t, "billing.invoices", e.Reference.Path)
		assert.Len(t, g.EdgesFromFile(fileA), 2)
		assert.Empty(t, g.EdgesFromFile(fileB))
	})

	t.Run("direct and transitive queries", func(t *testing.T) {
		assert.Equal(t, []string{"auth.login"}, g.GetDependents("billing.invoices"))
		assert.Empty(t, g.GetTransitiveDependencies("billing"))
		assert.Equal(t, []string{"billing"}, g.GetTransitiveDependencies("auth"))
		assert.Equal(t, []string{"auth"}, g.GetTransitiveDependents("billing"))
	})
}

func TestBuild_PartialMatchRepresentativeEdge(t *testing.T) {
	idx := index.NewWorkspaceIndex()
	idx.AddFile(fileA, asttest.File(
		asttest.Module("app", asttest.DependsOn("billing")),
	))
	idx.AddFile(fileB, asttest.File(
		asttest.Module("billing.payments"),
		asttest.Module("billing.invoices"),
	))

	g := buildGraph(t, idx)

	assert.Equal(t, []string{"billing.invoices"}, g.GetDependencies("app"))
	assert.Equal(t, 1, g.EdgeCount())
}

func TestBuild_RemovedFileLeavesNoEdges(t *testing.T) {
	idx := index.NewWorkspaceIndex()
	idx.AddFile(fileA, asttest.File(
		asttest.Module("auth", asttest.DependsOn("billing")),
	))
	idx.AddFile(fileB, asttest.File(
		asttest.Module("billing", asttest.DependsOn("auth")),
	))

	before := buildGraph(t, idx)
	require.Len(t, before.EdgesFromFile(fileA), 1)
	require.False(t, before.IsAcyclic())

	idx.RemoveFile(fileA)
	after := buildGraph(t, idx)

	assert.Empty(t, after.EdgesFromFile(fileA))
	assert.Zero(t, after.EdgeCount())
	assert.True(t, after.IsAcyclic())
	assert.Equal(t, []string{"billing"}, after.TopologicalOrder())
}

func TestBuild_IdempotentReAdd(t *testing.T) {
	tree := asttest.File(
		asttest.Module("a", asttest.DependsOn("b")),
		asttest.Module("b", asttest.DependsOn("a")),
	)
	idx := index.NewWorkspaceIndex()
	idx.AddFile(fileA, tree)
	first := buildGraph(t, idx)

	idx.AddFile(fileA, tree)
	second := buildGraph(t, idx)

	assert.Equal(t, first.Edges(), second.Edges())
	assert.Equal(t, first.Cycles(), second.Cycles())
	assert.Equal(t, first.Nodes(), second.Nodes())
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilResolver)

	idx := index.NewWorkspaceIndex()
	idx.AddFile(fileA, asttest.File(asttest.Module("a", asttest.DependsOn("b"))))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, idx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBuildCancelled))
}

func TestNormalizeCycle(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, normalizeCycle([]string{"b", "c", "a"}))
	assert.Equal(t, []string{"a", "b", "c"}, normalizeCycle([]string{"c", "a", "b"}))
	assert.Empty(t, normalizeCycle(nil))

	in := []string{"b", "a"}
	out := normalizeCycle(in)
	out[0] = "z"
	assert.Equal(t, []string{"b", "a"}, in)
}
