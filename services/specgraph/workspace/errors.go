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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for workspace operations.
var (
	// ErrWatcherStopped is returned when starting a watcher that was stopped.
	ErrWatcherStopped = errors.New("watcher stopped")

	// ErrUnknownFile is returned when a path matches neither the AST nor
	// the ticket patterns.
	ErrUnknownFile = errors.New("file matches no workspace pattern")
)

// BatchError aggregates the per-file failures of a directory load.
//
// Files that fail are skipped; every other file is still loaded.
type BatchError struct {
	Errors []error
}

// Error returns a human-readable summary of the batch errors.
func (e *BatchError) Error() string {
	if len(e.Errors) == 0 {
		return "batch error with no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v (and %d more)",
		len(e.Errors), e.Errors[0], len(e.Errors)-1)
}

// Unwrap returns the underlying errors for use with errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// ErrorList returns every error, one per line.
func (e *BatchError) ErrorList() string {
	var b strings.Builder
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}
