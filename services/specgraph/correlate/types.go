// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package correlate maps requirements to the tickets implementing them.
//
// Correlate is a pure function: given the requirement symbols of the
// index and the current ticket set, it computes each requirement's
// status, constraint satisfaction and implementation files. The result
// is derived data and is rebuilt, never patched.
package correlate

import (
	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
	"github.com/AleutianAI/specgraph/services/specgraph/tickets"
)

// Status is the computed status of a requirement.
type Status string

const (
	StatusNoTicket   Status = "no-ticket"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
	StatusObsolete   Status = "obsolete"
)

// AllStatuses lists every status in summary order.
var AllStatuses = []Status{
	StatusComplete,
	StatusInProgress,
	StatusPending,
	StatusNoTicket,
	StatusObsolete,
}

// ConstraintStatus is the satisfaction state of one declared constraint.
type ConstraintStatus struct {
	Name      string `json:"name"`
	Satisfied bool   `json:"satisfied"`

	// SatisfiedBy lists the IDs of tickets naming the constraint, in
	// ticket order.
	SatisfiedBy []string `json:"satisfied_by"`
}

// RequirementInfo is everything known about one requirement's implementation.
type RequirementInfo struct {
	RequirementPath string         `json:"requirement_path"`
	Requirement     *symtab.Symbol `json:"-"`

	Tickets []tickets.Ticket `json:"tickets"`
	Status  Status           `json:"status"`

	ConstraintStatuses   []ConstraintStatus `json:"constraint_statuses"`
	ConstraintsSatisfied int                `json:"constraints_satisfied"`
	ConstraintsTotal     int                `json:"constraints_total"`

	ImplementationFiles []string `json:"implementation_files"`
	TestFiles           []string `json:"test_files"`
}

// OrphanedTicket is a ticket whose ref names no known requirement.
type OrphanedTicket struct {
	Ticket tickets.Ticket `json:"ticket"`

	// Source is the file the ticket came from, or tickets.AggregatedSource.
	Source string `json:"source"`
}

// Result is the output of Correlate.
type Result struct {
	// Map holds one entry per requirement path.
	Map map[string]*RequirementInfo `json:"map"`

	OrphanedTickets []OrphanedTicket `json:"orphaned_tickets"`

	// RequirementsWithoutTickets lists requirement paths with zero
	// tickets, sorted.
	RequirementsWithoutTickets []string `json:"requirements_without_tickets"`
}

// Paths returns the requirement paths of the map, sorted.
func (r *Result) Paths() []string {
	return sortedKeys(r.Map)
}

// CompletionSummary counts requirements per status.
type CompletionSummary struct {
	Total           int            `json:"total"`
	ByStatus        map[Status]int `json:"by_status"`
	PercentComplete int            `json:"percent_complete"`
}
