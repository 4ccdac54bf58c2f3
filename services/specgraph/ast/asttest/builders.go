// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package asttest builds requirements-DSL syntax trees for tests.
//
// Example:
//
//	root := asttest.File(
//	    asttest.Module("auth",
//	        asttest.Feature("login",
//	            asttest.Requirement("basic-auth",
//	                asttest.DependsOn("billing.invoices"),
//	                asttest.Constraint("bcrypt"),
//	            ),
//	        ),
//	    ),
//	)
package asttest

import "github.com/AleutianAI/specgraph/services/specgraph/ast"

// File returns a source_file root holding the given declarations.
func File(decls ...*ast.MemNode) *ast.MemNode {
	root := ast.NewNode(ast.NodeSourceFile)
	for _, d := range decls {
		root.Append("", d)
	}
	return root
}

// Module returns a module declaration.
func Module(name string, children ...*ast.MemNode) *ast.MemNode {
	return declaration(ast.NodeModule, name, children)
}

// Feature returns a feature declaration.
func Feature(name string, children ...*ast.MemNode) *ast.MemNode {
	return declaration(ast.NodeFeature, name, children)
}

// Requirement returns a requirement declaration.
func Requirement(name string, children ...*ast.MemNode) *ast.MemNode {
	return declaration(ast.NodeRequirement, name, children)
}

// Constraint returns a constraint declaration.
func Constraint(name string, children ...*ast.MemNode) *ast.MemNode {
	return declaration(ast.NodeConstraint, name, children)
}

// Description returns a quoted description bound to the description field.
func Description(text string) *ast.MemNode {
	d := ast.Leaf(ast.NodeDescription, `"`+text+`"`)
	d.Field = ast.FieldDescription
	return d
}

// DependsOn returns a depends-on clause naming the given paths.
func DependsOn(paths ...string) *ast.MemNode {
	clause := ast.NewNode(ast.NodeDependsOn)
	for _, p := range paths {
		clause.Append("", ast.Leaf(ast.NodeReference, p))
	}
	return clause
}

// declaration builds a declaration node; children bound to a field keep it.
func declaration(nodeType, name string, children []*ast.MemNode) *ast.MemNode {
	n := ast.NewNode(nodeType)
	n.Append(ast.FieldName, ast.Leaf(ast.NodeIdentifier, name))
	body := ast.NewNode("block")
	hasBody := false
	for _, c := range children {
		if c.Field != "" {
			n.Append(c.Field, c)
			continue
		}
		body.Append("", c)
		hasBody = true
	}
	if hasBody {
		n.Append(ast.FieldBody, body)
	}
	return n
}
