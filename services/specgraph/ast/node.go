// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast defines the syntax-tree boundary between the external
// requirements-DSL parser and the semantic index.
//
// The index never parses source text. It consumes any tree that satisfies
// Node: a tree-sitter tree wrapped with NewSitterNode, or an in-memory
// MemNode tree decoded from the JSON interchange format.
//
// A host that runs the grammar itself, such as an editor integration,
// wraps each parsed tree and hands it to the workspace:
//
//	tree, err := parser.ParseCtx(ctx, nil, src)
//	if err != nil {
//		return err
//	}
//	ws.Update(uri, ast.NewSitterTree(tree, src))
//
// # Ownership Model
//
// Nodes are read-only. The index keeps references into the tree of the
// last indexed version of a file and never copies or mutates them.
package ast

// Node types produced by the requirements-DSL grammar.
const (
	NodeSourceFile  = "source_file"
	NodeModule      = "module_declaration"
	NodeFeature     = "feature_declaration"
	NodeRequirement = "requirement_declaration"
	NodeConstraint  = "constraint_declaration"
	NodeDependsOn   = "depends_on"
	NodeReference   = "reference"
	NodeIdentifier  = "identifier"
	NodeDescription = "description"
)

// Field names used by declaration nodes.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldBody        = "body"
)

// Point is a zero-based (row, column) position in a source file.
type Point struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Node is a read-only syntax-tree node.
//
// Description:
//
//	The minimal traversal surface the symbol-table builder needs:
//	node type, ordered children, parent, named fields, position range
//	and source text. Implementations must return an untyped nil Node
//	(not a typed nil pointer) when a child, parent or field is absent.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent reads.
type Node interface {
	// Type returns the grammar node type, e.g. NodeRequirement.
	Type() string

	// ChildCount returns the number of direct children.
	ChildCount() int

	// Child returns the i-th child, or nil if out of range.
	Child(i int) Node

	// Parent returns the parent node, or nil for the root.
	Parent() Node

	// ChildByFieldName returns the child bound to the given field, or nil.
	ChildByFieldName(name string) Node

	// StartPosition returns the position of the first character.
	StartPosition() Point

	// EndPosition returns the position just past the last character.
	EndPosition() Point

	// Text returns the source text spanned by the node.
	Text() string
}

// Walk visits n and its descendants depth-first in document order.
//
// If fn returns false the children of the current node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for i := 0; i < n.ChildCount(); i++ {
		Walk(n.Child(i), fn)
	}
}
