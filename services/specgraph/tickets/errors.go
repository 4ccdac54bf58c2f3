// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tickets

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for ticket loading.
var (
	// ErrInvalidTicketFile is returned when a ticket file is not valid
	// JSON or has neither a "tickets" array nor a top-level array.
	ErrInvalidTicketFile = errors.New("invalid ticket file")

	// ErrInvalidTicket wraps the failure of a single record. Other
	// records of the same file still load.
	ErrInvalidTicket = errors.New("invalid ticket")
)

// LoadError aggregates the per-record failures of one ticket file.
//
// LoadError implements the multi-error Unwrap interface, so errors.Is
// matches ErrInvalidTicket.
type LoadError struct {
	// Source is the file that was loaded.
	Source string

	// Errors holds one error per rejected record.
	Errors []error
}

// Error returns a summary of the rejected records.
func (e *LoadError) Error() string {
	switch len(e.Errors) {
	case 0:
		return fmt.Sprintf("%s: no errors", e.Source)
	case 1:
		return fmt.Sprintf("%s: %v", e.Source, e.Errors[0])
	}
	return fmt.Sprintf("%s: %d errors: %v (and %d more)",
		e.Source, len(e.Errors), e.Errors[0], len(e.Errors)-1)
}

// Unwrap returns the underlying errors for errors.Is and errors.As.
func (e *LoadError) Unwrap() []error {
	return e.Errors
}

// ErrorList returns every error, one per line.
func (e *LoadError) ErrorList() string {
	var b strings.Builder
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}
