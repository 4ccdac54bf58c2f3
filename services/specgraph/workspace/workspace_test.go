// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/specgraph/services/specgraph/ast"
	"github.com/AleutianAI/specgraph/services/specgraph/ast/asttest"
	"github.com/AleutianAI/specgraph/services/specgraph/cache"
	"github.com/AleutianAI/specgraph/services/specgraph/config"
	"github.com/AleutianAI/specgraph/services/specgraph/correlate"
	"github.com/AleutianAI/specgraph/services/specgraph/tickets"
)

func writeAST(t *testing.T, path string, root *ast.MemNode) {
	t.Helper()
	data, err := json.Marshal(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Workspace.Root = dir
	return New(cfg), dir
}

func authTree() *ast.MemNode {
	return asttest.File(
		asttest.Module("auth",
			asttest.Feature("login",
				asttest.Requirement("basic-auth",
					asttest.DependsOn("billing"),
					asttest.Constraint("bcrypt"),
				),
			),
		),
	)
}

func billingTree() *ast.MemNode {
	return asttest.File(
		asttest.Module("billing",
			asttest.Requirement("invoice"),
		),
	)
}

const ticketJSON = `{
	// tracked in the issue tracker
	"tickets": [
		{"id": "T-1", "ref": "auth.login.basic-auth", "status": "complete", "constraints_satisfied": ["bcrypt"]},
		{"id": "T-2", "ref": "gone.requirement", "status": "pending"}
	]
}`

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeAST(t, filepath.Join(dir, "auth.req.json"), authTree())
	writeAST(t, filepath.Join(dir, "nested", "deep", "billing.req.json"), billingTree())
	writeAST(t, filepath.Join(dir, "node_modules", "pkg", "skip.req.json"), billingTree())
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	files, err := Discover(dir, []string{"**/*.req.json", "*.req.json"}, []string{"node_modules/**"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "auth.req.json"),
		filepath.Join(dir, "nested", "deep", "billing.req.json"),
	}, files)
}

func TestRelativeTo(t *testing.T) {
	root := filepath.FromSlash("/work/specs")

	rel, ok := relativeTo(root, filepath.FromSlash("/work/specs/a/b.req.json"))
	assert.True(t, ok)
	assert.Equal(t, "a/b.req.json", rel)

	_, ok = relativeTo(root, filepath.FromSlash("/work/other/b.req.json"))
	assert.False(t, ok)
}

func TestURIForPath(t *testing.T) {
	uri := URIForPath(filepath.FromSlash("/work/specs/auth.req.json"))
	assert.Equal(t, "file:///work/specs/auth.req.json", uri)
}

func TestWorkspace_LoadDir(t *testing.T) {
	ctx := context.Background()
	ws, dir := newTestWorkspace(t)

	writeAST(t, filepath.Join(dir, "auth.req.json"), authTree())
	writeAST(t, filepath.Join(dir, "billing", "billing.req.json"), billingTree())
	writeFile(t, filepath.Join(dir, "work.tickets.json"), ticketJSON)

	summary, err := ws.LoadDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadSummary{ASTFiles: 2, TicketFiles: 1}, summary)

	assert.True(t, ws.Index().HasSymbol("auth.login.basic-auth.bcrypt"))
	assert.True(t, ws.Index().HasSymbol("billing.invoice"))
	assert.Equal(t, 2, ws.Tickets().Len())

	g, err := ws.Cache().DependencyGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, g.GetDependencies("auth.login.basic-auth"))
}

func TestWorkspace_LoadDirPartialFailure(t *testing.T) {
	ctx := context.Background()
	ws, dir := newTestWorkspace(t)

	writeAST(t, filepath.Join(dir, "auth.req.json"), authTree())
	writeFile(t, filepath.Join(dir, "broken.req.json"), `{"type": `)
	writeFile(t, filepath.Join(dir, "bad.tickets.json"), `[
		{"id": "T-1", "ref": "auth.login.basic-auth", "status": "complete"},
		{"id": "T-9", "ref": "auth", "status": "done"}
	]`)

	summary, err := ws.LoadDir(ctx)
	require.Error(t, err)

	var batch *BatchError
	require.True(t, errors.As(err, &batch))
	assert.Len(t, batch.Errors, 2)
	assert.ErrorIs(t, err, ast.ErrInvalidAST)
	assert.ErrorIs(t, err, tickets.ErrInvalidTicket)

	assert.Equal(t, 1, summary.ASTFiles)
	assert.Equal(t, 1, summary.TicketFiles)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, ws.Index().HasSymbol("auth"))
	assert.Equal(t, 1, ws.Tickets().Len(), "valid ticket kept")
}

func TestWorkspace_LoadDirNullChild(t *testing.T) {
	ws, dir := newTestWorkspace(t)
	writeAST(t, filepath.Join(dir, "auth.req.json"), authTree())
	writeFile(t, filepath.Join(dir, "null.req.json"), `{"type": "source_file", "children": [null]}`)

	var (
		summary LoadSummary
		err     error
	)
	require.NotPanics(t, func() {
		summary, err = ws.LoadDir(context.Background())
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ast.ErrInvalidAST)
	assert.Equal(t, 1, summary.ASTFiles)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, ws.Index().HasSymbol("auth"))
}

func TestWorkspace_LoadDirCancelled(t *testing.T) {
	ws, dir := newTestWorkspace(t)
	writeAST(t, filepath.Join(dir, "auth.req.json"), authTree())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ws.LoadDir(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkspace_MutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	ws := New(nil)
	const authURI = "file:///specs/auth.req"

	ws.Update(authURI, authTree())
	ws.SetTicketFile("t.json", []tickets.Ticket{
		{ID: "T-1", Ref: "auth.login.basic-auth", Status: tickets.StatusInProgress},
	})

	m1, err := ws.Cache().TicketMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, correlate.StatusInProgress, m1.Map["auth.login.basic-auth"].Status)

	t.Run("ticket update refreshes the map", func(t *testing.T) {
		g1, _ := ws.Cache().DependencyGraph(ctx)
		ws.SetTicketFile("t.json", []tickets.Ticket{
			{ID: "T-1", Ref: "auth.login.basic-auth", Status: tickets.StatusComplete},
		})
		m2, err := ws.Cache().TicketMap(ctx)
		require.NoError(t, err)
		assert.Equal(t, correlate.StatusComplete, m2.Map["auth.login.basic-auth"].Status)

		g2, _ := ws.Cache().DependencyGraph(ctx)
		assert.Same(t, g1, g2)
	})

	t.Run("unknown ticket source is a no-op", func(t *testing.T) {
		_, before := ws.Cache().Versions()
		assert.False(t, ws.RemoveTicketFile("missing.json"))
		_, after := ws.Cache().Versions()
		assert.Equal(t, before, after)
	})

	t.Run("document update rebuilds the graph", func(t *testing.T) {
		ws.Update("file:///specs/billing.req", billingTree())
		g, err := ws.Cache().DependencyGraph(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"billing"}, g.GetDependencies("auth.login.basic-auth"))
	})

	t.Run("close drops the document", func(t *testing.T) {
		result := ws.Close(authURI)
		assert.Contains(t, result.Removed, "auth")

		m, err := ws.Cache().TicketMap(ctx)
		require.NoError(t, err)
		assert.NotContains(t, m.Map, "auth.login.basic-auth")
		require.Len(t, m.OrphanedTickets, 1)
		assert.Equal(t, "t.json", m.OrphanedTickets[0].Source)
	})

	t.Run("ticket source removal", func(t *testing.T) {
		assert.True(t, ws.RemoveTicketFile("t.json"))
		m, err := ws.Cache().TicketMap(ctx)
		require.NoError(t, err)
		assert.Empty(t, m.OrphanedTickets)
	})
}

func TestWorkspace_LoadTicketFileKeepsPreviousOnDecodeError(t *testing.T) {
	ws, dir := newTestWorkspace(t)
	path := filepath.Join(dir, "a.tickets.json")

	writeFile(t, path, ticketJSON)
	require.NoError(t, ws.LoadTicketFile(path))
	require.Equal(t, 2, ws.Tickets().Len())

	writeFile(t, path, `{"tickets": [`)
	err := ws.LoadTicketFile(path)
	assert.ErrorIs(t, err, tickets.ErrInvalidTicketFile)
	assert.Equal(t, 2, ws.Tickets().Len())
}

func TestWorkspace_Report(t *testing.T) {
	ctx := context.Background()
	ws := New(nil)

	ws.Update("file:///a.req", asttest.File(
		asttest.Module("core", asttest.DependsOn("edge")),
		asttest.Module("edge",
			asttest.DependsOn("core", "nowhere"),
			asttest.Requirement("r1"),
		),
	))
	ws.Update("file:///b.req", asttest.File(
		asttest.Module("core"),
	))
	ws.SetTicketFile("", []tickets.Ticket{
		{ID: "T-1", Ref: "edge.r1", Status: tickets.StatusComplete},
		{ID: "T-2", Ref: "elsewhere", Status: tickets.StatusPending},
	})

	report, err := ws.Report(ctx)
	require.NoError(t, err)

	assert.True(t, report.HasProblems())
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "nowhere", report.Unresolved[0].Path)

	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, "core", report.Conflicts[0].Path)
	assert.Len(t, report.Conflicts[0].Locations, 2)

	require.Len(t, report.Cycles, 1)
	assert.Equal(t, []string{"core", "edge", "core"}, report.Cycles[0].Nodes)
	assert.Empty(t, report.TopologicalOrder)

	assert.Equal(t, 1, report.Completion.Total)
	assert.Equal(t, 100, report.Completion.PercentComplete)
	require.Len(t, report.OrphanedTickets, 1)
	assert.Equal(t, tickets.AggregatedSource, report.OrphanedTickets[0].Source)
	assert.Empty(t, report.WithoutTickets)

	stats := ws.Cache().Stats()
	_, err = ws.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.GraphBuilds, ws.Cache().Stats().GraphBuilds)
}

func TestWorkspace_ReportClean(t *testing.T) {
	ws := New(nil)
	ws.Update("file:///a.req", billingTree())

	report, err := ws.Report(context.Background())
	require.NoError(t, err)

	assert.False(t, report.HasProblems())
	assert.NotNil(t, report.Unresolved)
	assert.Equal(t, []string{"billing", "billing.invoice"}, report.TopologicalOrder)
	assert.Equal(t, []string{"billing.invoice"}, report.WithoutTickets)
	assert.Equal(t, 2, report.Stats.TotalSymbols)
	assert.Equal(t, cache.ScopeNone, ws.Cache().ApplyUpdate(ws.Index().RemoveFile("file:///missing")))
}
