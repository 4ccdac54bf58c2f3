// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/specgraph/services/specgraph/ast"
	"github.com/AleutianAI/specgraph/services/specgraph/ast/asttest"
	"github.com/AleutianAI/specgraph/services/specgraph/correlate"
	"github.com/AleutianAI/specgraph/services/specgraph/graph"
	"github.com/AleutianAI/specgraph/services/specgraph/index"
	"github.com/AleutianAI/specgraph/services/specgraph/tickets"
)

const specURI = "file:///specs/auth.req"

func setup(t *testing.T) (*index.WorkspaceIndex, *tickets.Store, *ComputedCache) {
	t.Helper()
	idx := index.NewWorkspaceIndex()
	idx.AddFile(specURI, asttest.File(
		asttest.Module("auth",
			asttest.Feature("login",
				asttest.Requirement("basic-auth",
					asttest.DependsOn("auth.login.session"),
					asttest.Constraint("bcrypt"),
				),
				asttest.Requirement("session"),
			),
		),
	))
	store := tickets.NewStore()
	store.Set("t.json", []tickets.Ticket{
		{ID: "T-1", Ref: "auth.login.basic-auth", Status: tickets.StatusComplete, ConstraintsSatisfied: []string{"bcrypt"}},
	})
	return idx, store, NewComputedCache(idx, store)
}

func TestComputedCache_DependencyGraph(t *testing.T) {
	ctx := context.Background()
	_, _, c := setup(t)

	first, err := c.DependencyGraph(ctx)
	require.NoError(t, err)
	second, err := c.DependencyGraph(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []string{"auth.login.session"}, first.GetDependencies("auth.login.basic-auth"))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.GraphBuilds)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestComputedCache_TicketMap(t *testing.T) {
	ctx := context.Background()
	_, _, c := setup(t)

	m, err := c.TicketMap(ctx)
	require.NoError(t, err)

	info := m.Map["auth.login.basic-auth"]
	require.NotNil(t, info)
	assert.Equal(t, correlate.StatusComplete, info.Status)
	assert.Equal(t, 1, info.ConstraintsSatisfied)
	assert.Equal(t, []string{"auth.login.session"}, m.RequirementsWithoutTickets)

	again, err := c.TicketMap(ctx)
	require.NoError(t, err)
	assert.Same(t, m, again)
}

func TestComputedCache_InvalidateDependencyGraph(t *testing.T) {
	ctx := context.Background()
	idx, _, c := setup(t)

	g1, _ := c.DependencyGraph(ctx)
	m1, _ := c.TicketMap(ctx)

	result := idx.RemoveFile(specURI)
	assert.Equal(t, ScopeDependencyGraph, c.ApplyUpdate(result))

	iv, tv := c.Versions()
	assert.Equal(t, uint64(1), iv)
	assert.Equal(t, uint64(0), tv)

	g2, err := c.DependencyGraph(ctx)
	require.NoError(t, err)
	m2, err := c.TicketMap(ctx)
	require.NoError(t, err)

	assert.NotSame(t, g1, g2)
	assert.Zero(t, g2.NodeCount())
	assert.NotSame(t, m1, m2, "ticket map depends on which requirements exist")
	assert.Empty(t, m2.Map)
	assert.Len(t, m2.OrphanedTickets, 1)
}

func TestComputedCache_InvalidateTicketMap(t *testing.T) {
	ctx := context.Background()
	_, store, c := setup(t)

	g1, _ := c.DependencyGraph(ctx)
	m1, _ := c.TicketMap(ctx)

	store.Set("t.json", []tickets.Ticket{
		{ID: "T-1", Ref: "auth.login.basic-auth", Status: tickets.StatusInProgress},
	})
	c.InvalidateTicketMap()

	g2, _ := c.DependencyGraph(ctx)
	m2, err := c.TicketMap(ctx)
	require.NoError(t, err)

	assert.Same(t, g1, g2, "graph untouched by ticket changes")
	assert.NotSame(t, m1, m2)
	assert.Equal(t, correlate.StatusInProgress, m2.Map["auth.login.basic-auth"].Status)

	iv, tv := c.Versions()
	assert.Equal(t, uint64(0), iv)
	assert.Equal(t, uint64(1), tv)
}

func TestComputedCache_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	_, _, c := setup(t)

	g1, _ := c.DependencyGraph(ctx)
	c.InvalidateAll()
	g2, _ := c.DependencyGraph(ctx)

	assert.NotSame(t, g1, g2)
	iv, tv := c.Versions()
	assert.Equal(t, uint64(1), iv)
	assert.Equal(t, uint64(1), tv)
}

func TestComputedCache_ApplyUpdate(t *testing.T) {
	ctx := context.Background()
	idx, _, c := setup(t)

	t.Run("identical re-add keeps the graph", func(t *testing.T) {
		g1, _ := c.DependencyGraph(ctx)
		result := idx.AddFile(specURI, asttest.File(
			asttest.Module("auth",
				asttest.Feature("login",
					asttest.Requirement("basic-auth",
						asttest.DependsOn("auth.login.session"),
						asttest.Constraint("bcrypt"),
					),
					asttest.Requirement("session"),
				),
			),
		))
		require.True(t, result.IsEmpty())
		ivBefore, tvBefore := c.Versions()

		assert.Equal(t, ScopeTicketMap, c.ApplyUpdate(result))
		g2, _ := c.DependencyGraph(ctx)
		assert.Same(t, g1, g2)

		iv, tv := c.Versions()
		assert.Equal(t, ivBefore+1, iv, "re-declared symbols advance the index version")
		assert.Equal(t, tvBefore, tv, "tickets did not change")
	})

	t.Run("unknown file removal is a no-op", func(t *testing.T) {
		before, _ := c.Versions()
		assert.Equal(t, ScopeNone, c.ApplyUpdate(idx.RemoveFile("file:///missing.req")))
		after, _ := c.Versions()
		assert.Equal(t, before, after)
	})

	t.Run("new path invalidates the graph", func(t *testing.T) {
		result := idx.AddFile("file:///specs/billing.req", asttest.File(asttest.Module("billing")))
		assert.Equal(t, ScopeDependencyGraph, c.ApplyUpdate(result))
		g, err := c.DependencyGraph(ctx)
		require.NoError(t, err)
		assert.True(t, g.HasNode("billing"))
	})
}

func TestComputedCache_TicketMapUsesCanonicalRequirement(t *testing.T) {
	ctx := context.Background()
	idx := index.NewWorkspaceIndex()
	c := NewComputedCache(idx, tickets.NewStore())

	withReq := func() *ast.MemNode {
		return asttest.File(asttest.Module("m", asttest.Feature("f", asttest.Requirement("r"))))
	}
	idx.AddFile("file:///a.req", withReq())
	idx.AddFile("file:///b.req", withReq())
	c.ApplyUpdate(idx.AddFile("file:///a.req", asttest.File(asttest.Module("m", asttest.Feature("f")))))
	c.ApplyUpdate(idx.AddFile("file:///a.req", withReq()))

	canonical := idx.GetSymbol("m.f.r")
	require.NotNil(t, canonical)
	assert.Equal(t, "file:///b.req", canonical.URI)

	m, err := c.TicketMap(ctx)
	require.NoError(t, err)
	require.Contains(t, m.Map, "m.f.r")
	assert.Same(t, canonical, m.Map["m.f.r"].Requirement)
}

func TestComputedCache_FailedComputationNotCached(t *testing.T) {
	ctx := context.Background()
	_, _, c := setup(t)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := c.DependencyGraph(cancelled)
	require.Error(t, err)
	_, err = c.TicketMap(cancelled)
	require.Error(t, err)

	g, err := c.DependencyGraph(ctx)
	require.NoError(t, err)
	assert.NotNil(t, g)
	assert.Equal(t, int64(1), c.Stats().GraphBuilds)
}

func TestComputedCache_ConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	_, _, c := setup(t)

	var wg sync.WaitGroup
	results := make([]*graph.DependencyGraph, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := c.DependencyGraph(ctx)
			if err == nil {
				results[i] = g
			}
		}(i)
	}
	wg.Wait()

	g, err := c.DependencyGraph(ctx)
	require.NoError(t, err)
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, g.Edges(), r.Edges())
	}
}
