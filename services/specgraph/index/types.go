// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides the workspace-wide symbol index for the
// requirements DSL.
//
// WorkspaceIndex aggregates per-file symbol tables into a registry keyed
// by hierarchical path, resolves depends-on references (exact and
// prefix matches), and reports unresolved references and cross-file
// conflicts.
//
// # Ownership Model
//
// The index stores pointers to symbols but does NOT own them:
//   - Symbols MUST NOT be mutated after AddFile returns
//   - To update a file: call AddFile again; its old symbols are retired first
//   - Symbol.Node points into the caller's syntax tree and is never copied
//
// # Failure Semantics
//
// No operation fails. Missing files and symbols yield nil or empty
// results, and conflicting declarations are recorded, not rejected.
//
// # Thread Safety
//
// WorkspaceIndex is safe for concurrent use. AddFile and RemoveFile take
// an exclusive lock; queries take a shared lock. Hosts must still apply
// the matching cache invalidation after each mutation before querying
// derived data.
package index

import (
	"log/slog"

	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
)

// UpdateResult describes what an AddFile or RemoveFile call changed.
type UpdateResult struct {
	// URI is the file that was updated.
	URI string `json:"uri"`

	// Added lists paths the file declares now but did not before.
	Added []string `json:"added"`

	// Removed lists paths the file declared before but does not now.
	Removed []string `json:"removed"`

	// Modified lists paths declared before and after. Their content may
	// have changed, so consumers treat them as modified.
	Modified []string `json:"modified"`

	// AffectedKinds lists the kinds of every added, removed or modified symbol.
	AffectedKinds []symtab.Kind `json:"affected_kinds"`

	// ReferencesChanged is true when the file's depends-on references differ
	// from the previously indexed version.
	ReferencesChanged bool `json:"references_changed"`
}

// HasSymbolChanges reports whether any path was added or removed.
func (r UpdateResult) HasSymbolChanges() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// IsEmpty reports whether the update left the index structurally
// unchanged: no path added or removed and identical references.
func (r UpdateResult) IsEmpty() bool {
	return !r.HasSymbolChanges() && !r.ReferencesChanged
}

// AffectsKind reports whether symbols of kind k were touched.
func (r UpdateResult) AffectsKind(k symtab.Kind) bool {
	for _, kind := range r.AffectedKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Resolution is the outcome of resolving a reference.
type Resolution struct {
	// Symbol is the canonical match: the first-registered symbol at the
	// exact path, or the representative of a partial match. The
	// representative is always the nested symbol with the lexicographically
	// smallest path, so it does not depend on file load order. Nil when the
	// reference is unresolved.
	Symbol *symtab.Symbol

	// IsPartialMatch is true when the reference names an ancestor path
	// with no symbol of its own.
	IsPartialMatch bool

	// MatchingSymbols lists every symbol at the exact path, or every
	// symbol nested under the path for a partial match.
	MatchingSymbols []*symtab.Symbol
}

// Resolved reports whether the reference matched any symbol.
func (r Resolution) Resolved() bool {
	return r.Symbol != nil
}

// IndexStats contains statistics about the workspace index.
type IndexStats struct {
	// TotalSymbols is the number of indexed symbols across all files.
	TotalSymbols int `json:"total_symbols"`

	// UniquePaths is the number of distinct symbol paths.
	UniquePaths int `json:"unique_paths"`

	// ByKind maps each kind to its symbol count.
	ByKind map[symtab.Kind]int `json:"by_kind"`

	// FileCount is the number of indexed files.
	FileCount int `json:"file_count"`

	// ReferenceCount is the number of tracked references.
	ReferenceCount int `json:"reference_count"`

	// ConflictCount is the number of paths declared in more than one file.
	ConflictCount int `json:"conflict_count"`
}

// IndexOptions configures WorkspaceIndex behavior.
type IndexOptions struct {
	// Logger receives debug events for mutations.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultIndexOptions returns the default options.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{Logger: slog.Default()}
}

// IndexOption is a functional option for configuring WorkspaceIndex.
type IndexOption func(*IndexOptions)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) IndexOption {
	return func(o *IndexOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
