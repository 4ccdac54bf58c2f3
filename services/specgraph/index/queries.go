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
	"sort"
	"strings"

	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
)

// GetSymbol returns the canonical (first-registered) symbol at path, or nil.
func (idx *WorkspaceIndex) GetSymbol(path string) *symtab.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if syms := idx.byPath[path]; len(syms) > 0 {
		return syms[0]
	}
	return nil
}

// GetSymbols returns every symbol registered at path, canonical first.
//
// The returned slice is a copy and can be modified by the caller.
func (idx *WorkspaceIndex) GetSymbols(path string) []*symtab.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return copySymbols(idx.byPath[path])
}

// HasSymbol reports whether any file declares path.
func (idx *WorkspaceIndex) HasSymbol(path string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.byPath[path]) > 0
}

// GetSymbolsByKind returns every symbol of the given kind.
//
// Description:
//
//	Symbols are listed in file order, then document order. The list is
//	cached per kind and dropped whenever a symbol of that kind is
//	added, removed or modified.
//
// Thread Safety:
//
//	This method is safe for concurrent use. The returned slice is a copy.
func (idx *WorkspaceIndex) GetSymbolsByKind(kind symtab.Kind) []*symtab.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return copySymbols(idx.symbolsByKindLocked(kind))
}

// GetCanonicalSymbolsByKind returns one symbol per path declared with
// the given kind: the first-registered one, as GetSymbol would return.
//
// Description:
//
//	Paths are listed in the order they first appear in GetSymbolsByKind.
//	When a path is declared with several kinds, the first-registered
//	declaration of the requested kind is used.
//
// Thread Safety:
//
//	This method is safe for concurrent use. The returned slice is a copy.
func (idx *WorkspaceIndex) GetCanonicalSymbolsByKind(kind symtab.Kind) []*symtab.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	all := idx.symbolsByKindLocked(kind)
	seen := make(map[string]bool, len(all))
	canonical := make([]*symtab.Symbol, 0, len(all))
	for _, s := range all {
		if seen[s.Path] {
			continue
		}
		seen[s.Path] = true
		for _, c := range idx.byPath[s.Path] {
			if c.Kind == kind {
				canonical = append(canonical, c)
				break
			}
		}
	}
	return canonical
}

// symbolsByKindLocked returns the cached per-kind list, building it on
// a miss. Caller must hold idx.mu (read or write).
func (idx *WorkspaceIndex) symbolsByKindLocked(kind symtab.Kind) []*symtab.Symbol {
	idx.derivedMu.Lock()
	defer idx.derivedMu.Unlock()

	cached, ok := idx.kindCache[kind]
	if !ok {
		cached = []*symtab.Symbol{}
		for _, uri := range idx.fileOrder {
			for _, s := range idx.files[uri].table.Symbols {
				if s.Kind == kind {
					cached = append(cached, s)
				}
			}
		}
		idx.kindCache[kind] = cached
	}
	return cached
}

// GetSymbolsInFile returns the symbols the file contributed, in document order.
func (idx *WorkspaceIndex) GetSymbolsInFile(uri string) []*symtab.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	f, ok := idx.files[uri]
	if !ok {
		return []*symtab.Symbol{}
	}
	return copySymbols(f.table.Symbols)
}

// AllSymbols returns every indexed symbol in file order, then document order.
func (idx *WorkspaceIndex) AllSymbols() []*symtab.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var all []*symtab.Symbol
	for _, uri := range idx.fileOrder {
		all = append(all, idx.files[uri].table.Symbols...)
	}
	return all
}

// AllReferences returns every tracked reference in file order.
//
// Only modules, features and requirements declare references.
func (idx *WorkspaceIndex) AllReferences() []symtab.Reference {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.allReferencesLocked()
}

// ReferencesInFile returns the references the file declares.
func (idx *WorkspaceIndex) ReferencesInFile(uri string) []symtab.Reference {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	f, ok := idx.files[uri]
	if !ok {
		return []symtab.Reference{}
	}
	refs := make([]symtab.Reference, len(f.refs))
	copy(refs, f.refs)
	return refs
}

func (idx *WorkspaceIndex) allReferencesLocked() []symtab.Reference {
	var refs []symtab.Reference
	for _, uri := range idx.fileOrder {
		refs = append(refs, idx.files[uri].refs...)
	}
	return refs
}

// Files returns indexed URIs in the order they were first added.
func (idx *WorkspaceIndex) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	files := make([]string, len(idx.fileOrder))
	copy(files, idx.fileOrder)
	return files
}

// HasFile reports whether the file is indexed.
func (idx *WorkspaceIndex) HasFile(uri string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, ok := idx.files[uri]
	return ok
}

// GetConflictingPaths returns the sorted paths declared in more than one file.
func (idx *WorkspaceIndex) GetConflictingPaths() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.conflictingPathsLocked()
}

func (idx *WorkspaceIndex) conflictingPathsLocked() []string {
	conflicts := []string{}
	for path, syms := range idx.byPath {
		for _, s := range syms[1:] {
			if s.URI != syms[0].URI {
				conflicts = append(conflicts, path)
				break
			}
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

// ResolveReference resolves a reference against the registry.
//
// Description:
//
//	Exact lookup first: the canonical symbol plus every symbol at the
//	path. Otherwise every symbol nested under path+"." is returned as a
//	partial match, ordered by path; the representative Symbol is the
//	first of them, i.e. the lexicographically smallest descendant path.
//	An unmatched reference yields a zero Resolution with an empty
//	MatchingSymbols list.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (idx *WorkspaceIndex) ResolveReference(ref symtab.Reference) Resolution {
	return idx.Resolve(ref.Path)
}

// Resolve resolves a bare path. See ResolveReference.
func (idx *WorkspaceIndex) Resolve(path string) Resolution {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.resolveLocked(path)
}

func (idx *WorkspaceIndex) resolveLocked(path string) Resolution {
	if syms := idx.byPath[path]; len(syms) > 0 {
		return Resolution{
			Symbol:          syms[0],
			IsPartialMatch:  false,
			MatchingSymbols: copySymbols(syms),
		}
	}

	matching := []*symtab.Symbol{}
	if path != "" {
		for _, p := range idx.descendantPathsLocked(path) {
			matching = append(matching, idx.byPath[p]...)
		}
	}
	if len(matching) == 0 {
		return Resolution{MatchingSymbols: matching}
	}
	return Resolution{
		Symbol:          matching[0],
		IsPartialMatch:  true,
		MatchingSymbols: matching,
	}
}

// descendantPathsLocked returns the sorted registered paths nested under
// ancestor. Caller must hold idx.mu (read or write).
func (idx *WorkspaceIndex) descendantPathsLocked(ancestor string) []string {
	idx.derivedMu.Lock()
	if idx.sortedPaths == nil {
		idx.sortedPaths = make([]string, 0, len(idx.byPath))
		for p := range idx.byPath {
			idx.sortedPaths = append(idx.sortedPaths, p)
		}
		sort.Strings(idx.sortedPaths)
	}
	sorted := idx.sortedPaths
	idx.derivedMu.Unlock()

	prefix := ancestor + symtab.Separator
	start := sort.SearchStrings(sorted, prefix)
	var out []string
	for i := start; i < len(sorted) && strings.HasPrefix(sorted[i], prefix); i++ {
		out = append(out, sorted[i])
	}
	return out
}

// GetUnresolvedReferences re-resolves every tracked reference and
// returns those with no match, in file order.
func (idx *WorkspaceIndex) GetUnresolvedReferences() []symtab.Reference {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	unresolved := []symtab.Reference{}
	for _, ref := range idx.allReferencesLocked() {
		if !idx.resolveLocked(ref.Path).Resolved() {
			unresolved = append(unresolved, ref)
		}
	}
	recordUnresolved(len(unresolved))
	return unresolved
}

// GetUnresolvedReferencesForFile returns the file's unresolved references.
func (idx *WorkspaceIndex) GetUnresolvedReferencesForFile(uri string) []symtab.Reference {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	unresolved := []symtab.Reference{}
	f, ok := idx.files[uri]
	if !ok {
		return unresolved
	}
	for _, ref := range f.refs {
		if !idx.resolveLocked(ref.Path).Resolved() {
			unresolved = append(unresolved, ref)
		}
	}
	return unresolved
}

// GetFilesDependingOn returns the other files whose references relate
// hierarchically (equal, ancestor or descendant) to any symbol the given
// file declares. Used to decide whose diagnostics need recomputing
// after an edit. The result is sorted.
func (idx *WorkspaceIndex) GetFilesDependingOn(uri string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	dependents := []string{}
	f, ok := idx.files[uri]
	if !ok || len(f.table.Symbols) == 0 {
		return dependents
	}

	for _, other := range idx.fileOrder {
		if other == uri {
			continue
		}
		if referencesAnyOf(idx.files[other].refs, f.table.Symbols) {
			dependents = append(dependents, other)
		}
	}
	sort.Strings(dependents)
	return dependents
}

func referencesAnyOf(refs []symtab.Reference, syms []*symtab.Symbol) bool {
	for _, ref := range refs {
		for _, s := range syms {
			if symtab.IsRelated(ref.Path, s.Path) {
				return true
			}
		}
	}
	return false
}

// GetTransitiveDependents returns every declaration that depends,
// directly or transitively, on path.
//
// Description:
//
//	Breadth-first over the reference set: any reference whose target
//	relates hierarchically to a frontier path makes its containing
//	declaration a dependent. The start path is excluded. The result is
//	sorted.
func (idx *WorkspaceIndex) GetTransitiveDependents(path string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.traverseLocked(path, func(ref symtab.Reference) (string, string) {
		return ref.Path, ref.ContainingPath
	})
}

// GetTransitiveDependencies returns every path that path depends on,
// directly or transitively.
//
// Description:
//
//	Breadth-first over the reference set: any reference declared by a
//	declaration that relates hierarchically to a frontier path
//	contributes its target. The start path is excluded. The result is
//	sorted.
func (idx *WorkspaceIndex) GetTransitiveDependencies(path string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.traverseLocked(path, func(ref symtab.Reference) (string, string) {
		return ref.ContainingPath, ref.Path
	})
}

// traverseLocked runs a BFS where edge(ref) yields (match, next): a
// reference whose match side relates to the frontier node adds next.
func (idx *WorkspaceIndex) traverseLocked(start string, edge func(symtab.Reference) (string, string)) []string {
	refs := idx.allReferencesLocked()
	visited := map[string]bool{start: true}
	queue := []string{start}
	result := []string{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, ref := range refs {
			match, next := edge(ref)
			if !symtab.IsRelated(match, current) || visited[next] {
				continue
			}
			visited[next] = true
			result = append(result, next)
			queue = append(queue, next)
		}
	}

	sort.Strings(result)
	return result
}

// WouldCreateCircularDependency reports whether adding "source depends
// on target" would close a cycle, i.e. whether target already depends
// on source transitively.
func (idx *WorkspaceIndex) WouldCreateCircularDependency(source, target string) bool {
	for _, dep := range idx.GetTransitiveDependencies(target) {
		if dep == source {
			return true
		}
	}
	return false
}

// Stats returns statistics about the index.
func (idx *WorkspaceIndex) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stats := IndexStats{
		UniquePaths:   len(idx.byPath),
		ByKind:        make(map[symtab.Kind]int),
		FileCount:     len(idx.files),
		ConflictCount: len(idx.conflictingPathsLocked()),
	}
	for _, f := range idx.files {
		stats.TotalSymbols += len(f.table.Symbols)
		stats.ReferenceCount += len(f.refs)
		for _, s := range f.table.Symbols {
			stats.ByKind[s.Kind]++
		}
	}
	return stats
}

// copySymbols returns a copy of src that is never nil.
func copySymbols(src []*symtab.Symbol) []*symtab.Symbol {
	out := make([]*symtab.Symbol, len(src))
	copy(out, src)
	return out
}
