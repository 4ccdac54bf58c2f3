// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tickets holds the externally tracked implementation tickets
// that requirements are correlated with.
//
// A ticket references exactly one requirement path. Tickets are read
// from JSON files (comments and trailing commas allowed), validated
// record by record, and kept in a Store keyed by the file they came from.
package tickets

// Status is the lifecycle state recorded on a ticket.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
	StatusObsolete   Status = "obsolete"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete, StatusObsolete:
		return true
	}
	return false
}

// AggregatedSource attributes tickets that were merged from sources
// without a file of their own.
const AggregatedSource = "(aggregated)"

// Implementation lists the files a ticket touched.
type Implementation struct {
	Files []string `json:"files,omitempty"`
	Tests []string `json:"tests,omitempty"`
}

// Ticket is one implementation ticket.
type Ticket struct {
	// ID identifies the ticket within its tracker.
	ID string `json:"id" validate:"required"`

	// Ref is the hierarchical path of the requirement the ticket implements.
	Ref string `json:"ref" validate:"required"`

	Description string `json:"description"`

	Status Status `json:"status" validate:"required,oneof=pending in-progress complete obsolete"`

	// ConstraintsSatisfied names constraints of the requirement this
	// ticket satisfies.
	ConstraintsSatisfied []string `json:"constraints_satisfied" validate:"dive,required"`

	Implementation *Implementation `json:"implementation,omitempty"`

	// Source is the file the ticket was loaded from, or AggregatedSource.
	Source string `json:"-"`
}

// Files returns the ticket's implementation files, or nil.
func (t Ticket) Files() []string {
	if t.Implementation == nil {
		return nil
	}
	return t.Implementation.Files
}

// Tests returns the ticket's test files, or nil.
func (t Ticket) Tests() []string {
	if t.Implementation == nil {
		return nil
	}
	return t.Implementation.Tests
}

// Source supplies the current ticket set.
//
// *Store implements Source.
type Source interface {
	Tickets() []Ticket
}
