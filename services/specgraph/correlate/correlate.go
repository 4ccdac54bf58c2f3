// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package correlate

import (
	"math"
	"sort"

	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
	"github.com/AleutianAI/specgraph/services/specgraph/tickets"
)

// ComputeStatus derives a requirement's status from its tickets' statuses.
//
// Description:
//
//	Precedence, applied in order:
//	  1. no tickets: no-ticket
//	  2. every ticket obsolete: obsolete
//	  3. obsolete tickets are discarded; if none remain: obsolete
//	  4. any remaining ticket in progress: in-progress
//	  5. every remaining ticket complete: complete
//	  6. otherwise: pending
//
// Thread Safety:
//
//	Pure function; safe for concurrent use.
func ComputeStatus(statuses []tickets.Status) Status {
	if len(statuses) == 0 {
		return StatusNoTicket
	}

	active := make([]tickets.Status, 0, len(statuses))
	for _, s := range statuses {
		if s != tickets.StatusObsolete {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return StatusObsolete
	}

	allComplete := true
	for _, s := range active {
		if s == tickets.StatusInProgress {
			return StatusInProgress
		}
		if s != tickets.StatusComplete {
			allComplete = false
		}
	}
	if allComplete {
		return StatusComplete
	}
	return StatusPending
}

// Correlate maps requirements to their tickets.
//
// Description:
//
//	Tickets are grouped by ref. Every requirement path gets an entry,
//	with an empty ticket list when nothing references it. When several
//	symbols share a path, the first one is used. Tickets whose ref names
//	no requirement are returned as orphans with their source.
//
// Inputs:
//
//	requirements - Requirement symbols, typically the index's
//	               GetCanonicalSymbolsByKind(symtab.KindRequirement).
//	ts - The current ticket set.
//
// Outputs:
//
//	*Result - Never nil. All slices are non-nil.
//
// Thread Safety:
//
//	Pure function; safe for concurrent use.
func Correlate(requirements []*symtab.Symbol, ts []tickets.Ticket) *Result {
	byRef := make(map[string][]tickets.Ticket)
	for _, t := range ts {
		byRef[t.Ref] = append(byRef[t.Ref], t)
	}

	result := &Result{
		Map:                        make(map[string]*RequirementInfo, len(requirements)),
		OrphanedTickets:            []OrphanedTicket{},
		RequirementsWithoutTickets: []string{},
	}

	for _, req := range requirements {
		if req == nil {
			continue
		}
		if _, seen := result.Map[req.Path]; seen {
			continue
		}
		info := correlateOne(req, byRef[req.Path])
		result.Map[req.Path] = info
		if len(info.Tickets) == 0 {
			result.RequirementsWithoutTickets = append(result.RequirementsWithoutTickets, req.Path)
		}
	}
	sort.Strings(result.RequirementsWithoutTickets)

	for _, t := range ts {
		if _, known := result.Map[t.Ref]; known {
			continue
		}
		source := t.Source
		if source == "" {
			source = tickets.AggregatedSource
		}
		result.OrphanedTickets = append(result.OrphanedTickets, OrphanedTicket{Ticket: t, Source: source})
	}

	return result
}

func correlateOne(req *symtab.Symbol, ts []tickets.Ticket) *RequirementInfo {
	info := &RequirementInfo{
		RequirementPath:     req.Path,
		Requirement:         req,
		Tickets:             make([]tickets.Ticket, len(ts)),
		ImplementationFiles: []string{},
		TestFiles:           []string{},
	}
	copy(info.Tickets, ts)

	statuses := make([]tickets.Status, len(ts))
	for i, t := range ts {
		statuses[i] = t.Status
	}
	info.Status = ComputeStatus(statuses)

	info.ConstraintStatuses = constraintStatuses(symtab.ConstraintNames(req.Node), ts)
	info.ConstraintsTotal = len(info.ConstraintStatuses)
	for _, cs := range info.ConstraintStatuses {
		if cs.Satisfied {
			info.ConstraintsSatisfied++
		}
	}

	files := newOrderedSet()
	tests := newOrderedSet()
	for _, t := range ts {
		files.add(t.Files()...)
		tests.add(t.Tests()...)
	}
	info.ImplementationFiles = files.items
	info.TestFiles = tests.items

	return info
}

// constraintStatuses marks each declared constraint satisfied when any
// ticket names it. Names the requirement does not declare are ignored.
func constraintStatuses(declared []string, ts []tickets.Ticket) []ConstraintStatus {
	statuses := make([]ConstraintStatus, 0, len(declared))
	seen := make(map[string]bool, len(declared))
	for _, name := range declared {
		if seen[name] {
			continue
		}
		seen[name] = true

		cs := ConstraintStatus{Name: name, SatisfiedBy: []string{}}
		for _, t := range ts {
			for _, satisfied := range t.ConstraintsSatisfied {
				if satisfied == name {
					cs.SatisfiedBy = append(cs.SatisfiedBy, t.ID)
					break
				}
			}
		}
		cs.Satisfied = len(cs.SatisfiedBy) > 0
		statuses = append(statuses, cs)
	}
	return statuses
}

// Summarize counts requirements per status.
//
// PercentComplete is round(100 * complete / total), and 0 for an empty map.
func Summarize(m map[string]*RequirementInfo) CompletionSummary {
	summary := CompletionSummary{
		Total:    len(m),
		ByStatus: make(map[Status]int, len(AllStatuses)),
	}
	for _, s := range AllStatuses {
		summary.ByStatus[s] = 0
	}
	for _, info := range m {
		summary.ByStatus[info.Status]++
	}
	if summary.Total > 0 {
		complete := float64(summary.ByStatus[StatusComplete])
		summary.PercentComplete = int(math.Round(100 * complete / float64(summary.Total)))
	}
	return summary
}

// FilterByPathPrefix keeps the entries whose path equals prefix or is
// nested under prefix + ".". The input map is not modified.
func FilterByPathPrefix(m map[string]*RequirementInfo, prefix string) map[string]*RequirementInfo {
	out := make(map[string]*RequirementInfo)
	for path, info := range m {
		if symtab.MatchesPrefix(path, prefix) {
			out[path] = info
		}
	}
	return out
}

// orderedSet collects strings once each, in first-seen order.
type orderedSet struct {
	items []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: []string{}, seen: make(map[string]bool)}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		if s.seen[v] {
			continue
		}
		s.seen[v] = true
		s.items = append(s.items, v)
	}
}

func sortedKeys(m map[string]*RequirementInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
