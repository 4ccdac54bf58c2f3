// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/specgraph/services/specgraph/ast"
	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
)

// fileEntry is everything one file contributes to the index.
type fileEntry struct {
	table *symtab.Table
	refs  []symtab.Reference
}

// WorkspaceIndex is the cross-file symbol registry.
//
// The index maintains:
//   - byPath: path → symbols declared at that path, in registration order
//   - files: URI → the file's last indexed symbol table and references
//   - fileOrder: URIs in first-added order, for deterministic iteration
//
// Derived lookups (per-kind symbol lists and the sorted path list used
// for prefix resolution) are built lazily and dropped by mutations that
// touch them.
//
// Thread Safety:
//
//	WorkspaceIndex is safe for concurrent use.
type WorkspaceIndex struct {
	mu sync.RWMutex

	byPath    map[string][]*symtab.Symbol
	files     map[string]*fileEntry
	fileOrder []string

	// derivedMu guards the lazily built lookups below. Readers hold
	// mu.RLock while taking it; writers hold mu.Lock.
	derivedMu   sync.Mutex
	kindCache   map[symtab.Kind][]*symtab.Symbol
	sortedPaths []string

	logger *slog.Logger
}

// NewWorkspaceIndex creates an empty index.
//
// Example:
//
//	idx := NewWorkspaceIndex(WithLogger(logger))
//	result := idx.AddFile("file:///specs/auth.req", root)
func NewWorkspaceIndex(opts ...IndexOption) *WorkspaceIndex {
	options := DefaultIndexOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &WorkspaceIndex{
		byPath:    make(map[string][]*symtab.Symbol),
		files:     make(map[string]*fileEntry),
		kindCache: make(map[symtab.Kind][]*symtab.Symbol),
		logger:    options.Logger,
	}
}

// AddFile indexes (or re-indexes) one file.
//
// Description:
//
//	Builds a fresh symbol table from root, diffs its paths against the
//	paths the file contributed before, and replaces the file's entries.
//	Symbols at paths that survive the update keep their position among
//	other files' symbols at the same path, so re-adding identical
//	content leaves conflict ordering untouched.
//
// Inputs:
//
//	uri - Identifier of the file.
//	root - Root of the file's syntax tree.
//
// Outputs:
//
//	UpdateResult - Added, removed and modified paths, the affected kinds,
//	               and whether the file's references changed. Re-adding
//	               identical content yields empty Added and Removed.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (idx *WorkspaceIndex) AddFile(uri string, root ast.Node) UpdateResult {
	start := time.Now()
	table := symtab.Build(uri, root)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev := idx.files[uri]
	var prevSymbols []*symtab.Symbol
	var prevRefs []symtab.Reference
	if prev != nil {
		prevSymbols = prev.table.Symbols
		prevRefs = prev.refs
	}

	result := diffTables(uri, prevSymbols, table.Symbols)
	refs := table.References()
	result.ReferencesChanged = !sameReferences(prevRefs, refs)

	idx.replaceSymbolsLocked(uri, prevSymbols, table.Symbols)
	if prev == nil {
		idx.fileOrder = append(idx.fileOrder, uri)
	}
	idx.files[uri] = &fileEntry{table: table, refs: refs}
	idx.resetDerivedLocked(result.AffectedKinds, result.HasSymbolChanges())

	idx.logger.Debug("indexed file",
		slog.String("uri", uri),
		slog.Int("symbols", len(table.Symbols)),
		slog.Int("references", len(refs)),
		slog.Int("added", len(result.Added)),
		slog.Int("removed", len(result.Removed)),
		slog.Int("modified", len(result.Modified)),
	)
	recordOperation("add_file", time.Since(start), idx.symbolCountLocked())

	return result
}

// RemoveFile drops every symbol and reference the file contributed.
//
// Description:
//
//	Removal is driven by what the file contributed at its last AddFile,
//	never by its current content. Removing an unknown file is a no-op
//	and returns an empty result.
//
// Outputs:
//
//	UpdateResult - Removed lists every retired path; AffectedKinds lists
//	               their kinds.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (idx *WorkspaceIndex) RemoveFile(uri string) UpdateResult {
	start := time.Now()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev, ok := idx.files[uri]
	if !ok {
		return UpdateResult{URI: uri}
	}

	result := diffTables(uri, prev.table.Symbols, nil)
	result.ReferencesChanged = len(prev.refs) > 0

	idx.replaceSymbolsLocked(uri, prev.table.Symbols, nil)
	delete(idx.files, uri)
	for i, u := range idx.fileOrder {
		if u == uri {
			idx.fileOrder = append(idx.fileOrder[:i], idx.fileOrder[i+1:]...)
			break
		}
	}
	idx.resetDerivedLocked(result.AffectedKinds, true)

	idx.logger.Debug("removed file",
		slog.String("uri", uri),
		slog.Int("removed", len(result.Removed)),
	)
	recordOperation("remove_file", time.Since(start), idx.symbolCountLocked())

	return result
}

// replaceSymbolsLocked swaps one file's symbols in byPath.
//
// For each path, the file's old entries are overwritten in place by its
// new entries; surplus old entries are deleted and surplus new entries
// are appended. Caller must hold idx.mu.Lock().
func (idx *WorkspaceIndex) replaceSymbolsLocked(uri string, oldSyms, newSyms []*symtab.Symbol) {
	incoming := make(map[string][]*symtab.Symbol)
	var order []string
	for _, s := range newSyms {
		if _, seen := incoming[s.Path]; !seen {
			order = append(order, s.Path)
		}
		incoming[s.Path] = append(incoming[s.Path], s)
	}

	touched := make(map[string]bool)
	for _, s := range oldSyms {
		touched[s.Path] = true
	}

	for path := range touched {
		replacements := incoming[path]
		current := idx.byPath[path]
		kept := current[:0:0]
		for _, s := range current {
			if s.URI != uri {
				kept = append(kept, s)
				continue
			}
			if len(replacements) > 0 {
				kept = append(kept, replacements[0])
				replacements = replacements[1:]
			}
		}
		kept = append(kept, replacements...)
		delete(incoming, path)

		if len(kept) == 0 {
			delete(idx.byPath, path)
		} else {
			idx.byPath[path] = kept
		}
	}

	for _, path := range order {
		if syms, ok := incoming[path]; ok {
			idx.byPath[path] = append(idx.byPath[path], syms...)
		}
	}
}

// resetDerivedLocked drops derived lookups invalidated by a mutation.
// Caller must hold idx.mu.Lock().
func (idx *WorkspaceIndex) resetDerivedLocked(kinds []symtab.Kind, pathsChanged bool) {
	idx.derivedMu.Lock()
	defer idx.derivedMu.Unlock()

	for _, k := range kinds {
		delete(idx.kindCache, k)
	}
	if pathsChanged {
		idx.sortedPaths = nil
	}
}

// symbolCountLocked counts symbols across files. Caller must hold idx.mu.
func (idx *WorkspaceIndex) symbolCountLocked() int {
	n := 0
	for _, f := range idx.files {
		n += len(f.table.Symbols)
	}
	return n
}

// diffTables computes the path-level difference between two versions of a file.
func diffTables(uri string, before, after []*symtab.Symbol) UpdateResult {
	beforeKinds := make(map[string]symtab.Kind, len(before))
	for _, s := range before {
		beforeKinds[s.Path] = s.Kind
	}
	afterKinds := make(map[string]symtab.Kind, len(after))
	for _, s := range after {
		afterKinds[s.Path] = s.Kind
	}

	result := UpdateResult{URI: uri, Added: []string{}, Removed: []string{}, Modified: []string{}}
	var kinds [symtab.NumKinds]bool

	for path, kind := range afterKinds {
		if _, existed := beforeKinds[path]; existed {
			result.Modified = append(result.Modified, path)
		} else {
			result.Added = append(result.Added, path)
		}
		kinds[kind] = true
	}
	for path, kind := range beforeKinds {
		if _, exists := afterKinds[path]; !exists {
			result.Removed = append(result.Removed, path)
		}
		kinds[kind] = true
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Modified)

	result.AffectedKinds = []symtab.Kind{}
	for k, touched := range kinds {
		if touched {
			result.AffectedKinds = append(result.AffectedKinds, symtab.Kind(k))
		}
	}
	return result
}

// sameReferences compares two reference lists by target, owner and location.
func sameReferences(a, b []symtab.Reference) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path ||
			a[i].ContainingPath != b[i].ContainingPath ||
			a[i].Location != b[i].Location {
			return false
		}
	}
	return true
}
