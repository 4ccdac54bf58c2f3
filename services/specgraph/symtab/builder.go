// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symtab

import (
	"strings"

	"github.com/AleutianAI/specgraph/services/specgraph/ast"
)

// Build extracts the symbol table of one file.
//
// Description:
//
//	Walks the tree in document order. Every module, feature, requirement
//	and constraint declaration with a non-empty name becomes a Symbol
//	whose path extends the path of its nearest enclosing declaration.
//	Every reference inside a depends-on clause is recorded on the scope
//	of the nearest enclosing module, feature or requirement. Clauses
//	inside constraints, or outside any declaration, are ignored.
//
//	Declarations without a name are error-recovery artifacts of the
//	parser; they and their subtree are skipped.
//
// Inputs:
//
//	uri - Identifier of the file, recorded on every symbol and reference.
//	root - Root of the file's syntax tree. A nil root yields an empty table.
//
// Outputs:
//
//	*Table - The file's symbol table. Never nil.
//
// Thread Safety:
//
//	Pure function; safe for concurrent use.
func Build(uri string, root ast.Node) *Table {
	b := &tableBuilder{table: &Table{URI: uri}}
	if root != nil {
		b.visitChildren(root, "", nil)
	}
	return b.table
}

// tableBuilder accumulates a Table during the walk.
type tableBuilder struct {
	table *Table
}

// visitChildren visits the children of n within the given declaration context.
// scope is nil when no dependency-capable declaration encloses n.
func (b *tableBuilder) visitChildren(n ast.Node, parentPath string, scope *Scope) {
	for i := 0; i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		b.visit(child, parentPath, scope)
	}
}

func (b *tableBuilder) visit(n ast.Node, parentPath string, scope *Scope) {
	if kind, ok := KindOfNode(n.Type()); ok {
		b.visitDeclaration(n, kind, parentPath, scope)
		return
	}

	if n.Type() == ast.NodeDependsOn {
		if scope != nil {
			b.collectReferences(n, scope)
		}
		return
	}

	b.visitChildren(n, parentPath, scope)
}

func (b *tableBuilder) visitDeclaration(n ast.Node, kind Kind, parentPath string, scope *Scope) {
	name := declarationName(n)
	if name == "" {
		return
	}

	path := Join(parentPath, name)
	b.table.Symbols = append(b.table.Symbols, &Symbol{
		Path:        path,
		Name:        name,
		Kind:        kind,
		Parent:      parentPath,
		Description: declarationDescription(n),
		URI:         b.table.URI,
		Location:    locationOf(b.table.URI, n),
		Node:        n,
	})

	var inner *Scope
	if kind != KindConstraint {
		inner = &Scope{Path: path, Kind: kind}
		b.table.Scopes = append(b.table.Scopes, inner)
	}
	b.visitChildren(n, path, inner)
}

// collectReferences records every reference below a depends-on clause.
func (b *tableBuilder) collectReferences(clause ast.Node, scope *Scope) {
	ast.Walk(clause, func(n ast.Node) bool {
		if n.Type() != ast.NodeReference {
			return true
		}
		path := normalizeReference(n.Text())
		if path != "" {
			scope.References = append(scope.References, Reference{
				Path:           path,
				ContainingPath: scope.Path,
				ContainingKind: scope.Kind,
				URI:            b.table.URI,
				Location:       locationOf(b.table.URI, n),
			})
		}
		return false
	})
}

// declarationName returns the trimmed text of the name field.
func declarationName(n ast.Node) string {
	name := n.ChildByFieldName(ast.FieldName)
	if name == nil {
		return ""
	}
	return strings.TrimSpace(name.Text())
}

// declarationDescription returns the description field without quotes.
func declarationDescription(n ast.Node) string {
	desc := n.ChildByFieldName(ast.FieldDescription)
	if desc == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(desc.Text()), `"`)
}

// ConstraintNames lists the constraints declared directly on a
// requirement (or any other declaration) node, in document order.
//
// Nested declarations other than constraints are not searched, so a
// constraint belonging to a nested requirement is not attributed to
// its ancestor.
func ConstraintNames(decl ast.Node) []string {
	if decl == nil {
		return nil
	}
	var names []string
	var visit func(n ast.Node)
	visit = func(n ast.Node) {
		for i := 0; i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil {
				continue
			}
			kind, isDecl := KindOfNode(child.Type())
			switch {
			case isDecl && kind == KindConstraint:
				if name := declarationName(child); name != "" {
					names = append(names, name)
				}
			case isDecl:
				// belongs to a nested declaration
			default:
				visit(child)
			}
		}
	}
	visit(decl)
	return names
}
