// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package symtab extracts per-file symbol tables from requirements-DSL
// syntax trees.
//
// A symbol table lists every declared module, feature, requirement and
// constraint with its hierarchical dot-separated path, and every
// depends-on reference grouped by the scope that declares it. Building a
// table is a pure function of one file's tree.
package symtab

import (
	"fmt"

	"github.com/AleutianAI/specgraph/services/specgraph/ast"
)

// Kind is the declaration kind of a symbol.
type Kind int

const (
	// KindModule is a top-level module declaration.
	KindModule Kind = iota

	// KindFeature is a feature declared inside a module.
	KindFeature

	// KindRequirement is a requirement declared inside a feature.
	KindRequirement

	// KindConstraint is a constraint attached to a requirement.
	// Constraints never declare dependencies.
	KindConstraint

	// NumKinds is the number of symbol kinds (for array sizing).
	NumKinds
)

// kindNames maps Kind values to their string representations.
var kindNames = [NumKinds]string{
	KindModule:      "module",
	KindFeature:     "feature",
	KindRequirement: "requirement",
	KindConstraint:  "constraint",
}

// AllKinds lists every symbol kind in hierarchy order.
var AllKinds = []Kind{KindModule, KindFeature, KindRequirement, KindConstraint}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if k >= 0 && k < NumKinds {
		return kindNames[k]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown symbol kind %q", text)
	}
	*k = parsed
	return nil
}

// ParseKind converts a kind name back into a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// kindForNode maps declaration node types to symbol kinds.
var kindForNode = map[string]Kind{
	ast.NodeModule:      KindModule,
	ast.NodeFeature:     KindFeature,
	ast.NodeRequirement: KindRequirement,
	ast.NodeConstraint:  KindConstraint,
}

// KindOfNode returns the symbol kind declared by a node type.
func KindOfNode(nodeType string) (Kind, bool) {
	k, ok := kindForNode[nodeType]
	return k, ok
}

// Location is a source range within a file.
type Location struct {
	// URI identifies the file.
	URI string `json:"uri"`

	// Start is the position of the first character.
	Start ast.Point `json:"start"`

	// End is the position just past the last character.
	End ast.Point `json:"end"`
}

// String formats the location as uri:line:column (one-based).
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.URI, l.Start.Row+1, l.Start.Column+1)
}

// locationOf builds a Location spanning n.
func locationOf(uri string, n ast.Node) Location {
	return Location{URI: uri, Start: n.StartPosition(), End: n.EndPosition()}
}

// Symbol is a declaration extracted from one file.
//
// The Node pointer is NOT owned by the Symbol. It references the
// declaration inside the file's last indexed tree and MUST NOT be
// mutated.
type Symbol struct {
	// Path is the dot-separated hierarchical path, e.g. "auth.login.basic-auth".
	Path string `json:"path"`

	// Name is the last path segment.
	Name string `json:"name"`

	// Kind is the declaration kind.
	Kind Kind `json:"kind"`

	// Parent is the path of the enclosing declaration, empty for roots.
	Parent string `json:"parent,omitempty"`

	// Description is the declaration's description text, unquoted.
	Description string `json:"description,omitempty"`

	// URI identifies the declaring file.
	URI string `json:"uri"`

	// Location spans the whole declaration.
	Location Location `json:"location"`

	// Node is the declaration node.
	Node ast.Node `json:"-"`
}

// Reference is one target named in a depends-on clause.
type Reference struct {
	// Path is the referenced hierarchical path as written.
	Path string `json:"path"`

	// ContainingPath is the path of the declaration that owns the clause.
	ContainingPath string `json:"containing_path"`

	// ContainingKind is the kind of the owning declaration.
	ContainingKind Kind `json:"containing_kind"`

	// URI identifies the declaring file.
	URI string `json:"uri"`

	// Location spans the reference text.
	Location Location `json:"location"`
}

// Scope groups the references declared directly by one module, feature
// or requirement.
type Scope struct {
	Path       string
	Kind       Kind
	References []Reference
}

// Table is the symbol table of one file.
type Table struct {
	// URI identifies the file.
	URI string

	// Symbols lists declarations in document order.
	Symbols []*Symbol

	// Scopes lists dependency-capable declarations in document order.
	Scopes []*Scope
}

// References flattens the references of every scope in document order.
func (t *Table) References() []Reference {
	var refs []Reference
	for _, s := range t.Scopes {
		refs = append(refs, s.References...)
	}
	return refs
}

// Paths returns the set of symbol paths declared by the table.
func (t *Table) Paths() map[string]struct{} {
	paths := make(map[string]struct{}, len(t.Symbols))
	for _, s := range t.Symbols {
		paths[s.Path] = struct{}{}
	}
	return paths
}
