// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"

	"github.com/AleutianAI/specgraph/services/specgraph/correlate"
	"github.com/AleutianAI/specgraph/services/specgraph/graph"
	"github.com/AleutianAI/specgraph/services/specgraph/index"
	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
)

// Conflict is a path declared in more than one file.
type Conflict struct {
	Path      string            `json:"path"`
	Locations []symtab.Location `json:"locations"`
}

// Report is a snapshot of workspace health.
type Report struct {
	Stats            index.IndexStats            `json:"stats"`
	Unresolved       []symtab.Reference          `json:"unresolved"`
	Conflicts        []Conflict                  `json:"conflicts"`
	Cycles           []graph.Cycle               `json:"cycles"`
	TopologicalOrder []string                    `json:"topological_order"`
	Completion       correlate.CompletionSummary `json:"completion"`
	OrphanedTickets  []correlate.OrphanedTicket  `json:"orphaned_tickets"`
	WithoutTickets   []string                    `json:"requirements_without_tickets"`
}

// HasProblems reports whether the workspace has unresolved references,
// conflicts, cycles or orphaned tickets.
func (r *Report) HasProblems() bool {
	return len(r.Unresolved) > 0 ||
		len(r.Conflicts) > 0 ||
		len(r.Cycles) > 0 ||
		len(r.OrphanedTickets) > 0
}

// Report computes a health snapshot from the index and the cached
// derived data.
func (w *Workspace) Report(ctx context.Context) (*Report, error) {
	g, err := w.cache.DependencyGraph(ctx)
	if err != nil {
		return nil, err
	}
	m, err := w.cache.TicketMap(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Stats:            w.index.Stats(),
		Unresolved:       w.index.GetUnresolvedReferences(),
		Conflicts:        []Conflict{},
		Cycles:           g.Cycles(),
		TopologicalOrder: g.TopologicalOrder(),
		Completion:       correlate.Summarize(m.Map),
		OrphanedTickets:  m.OrphanedTickets,
		WithoutTickets:   m.RequirementsWithoutTickets,
	}
	if report.Unresolved == nil {
		report.Unresolved = []symtab.Reference{}
	}

	for _, path := range w.index.GetConflictingPaths() {
		c := Conflict{Path: path}
		for _, sym := range w.index.GetSymbols(path) {
			c.Locations = append(c.Locations, sym.Location)
		}
		report.Conflicts = append(report.Conflicts, c)
	}
	return report, nil
}
