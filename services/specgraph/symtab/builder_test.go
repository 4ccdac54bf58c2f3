// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/specgraph/services/specgraph/ast"
	"github.com/AleutianAI/specgraph/services/specgraph/ast/asttest"
)

func authFile() *ast.MemNode {
	return asttest.File(
		asttest.Module("auth",
			asttest.Description("Authentication"),
			asttest.DependsOn("platform"),
			asttest.Feature("login",
				asttest.Requirement("basic-auth",
					asttest.DependsOn("billing.invoices", "audit . log"),
					asttest.Constraint("bcrypt",
						asttest.DependsOn("ignored.target"),
					),
					asttest.Constraint("rate-limit"),
				),
			),
		),
	)
}

func TestBuild_SymbolPaths(t *testing.T) {
	table := Build("file:///auth.req", authFile())

	var paths []string
	for _, s := range table.Symbols {
		paths = append(paths, s.Path)
	}
	assert.Equal(t, []string{
		"auth",
		"auth.login",
		"auth.login.basic-auth",
		"auth.login.basic-auth.bcrypt",
		"auth.login.basic-auth.rate-limit",
	}, paths)

	module := table.Symbols[0]
	assert.Equal(t, KindModule, module.Kind)
	assert.Equal(t, "", module.Parent)
	assert.Equal(t, "Authentication", module.Description)
	assert.Equal(t, "file:///auth.req", module.URI)
	require.NotNil(t, module.Node)
	assert.Equal(t, ast.NodeModule, module.Node.Type())

	bcrypt := table.Symbols[3]
	assert.Equal(t, KindConstraint, bcrypt.Kind)
	assert.Equal(t, "auth.login.basic-auth", bcrypt.Parent)
	assert.Equal(t, "bcrypt", bcrypt.Name)
}

func TestBuild_ReferencesGroupedByScope(t *testing.T) {
	table := Build("a.req", authFile())

	require.Len(t, table.Scopes, 3, "constraints do not open scopes")

	assert.Equal(t, "auth", table.Scopes[0].Path)
	require.Len(t, table.Scopes[0].References, 1)
	assert.Equal(t, "platform", table.Scopes[0].References[0].Path)

	assert.Empty(t, table.Scopes[1].References)

	req := table.Scopes[2]
	assert.Equal(t, KindRequirement, req.Kind)
	require.Len(t, req.References, 2)
	assert.Equal(t, "billing.invoices", req.References[0].Path)
	assert.Equal(t, "audit.log", req.References[1].Path, "whitespace inside references is dropped")
	assert.Equal(t, "auth.login.basic-auth", req.References[0].ContainingPath)
	assert.Equal(t, KindRequirement, req.References[0].ContainingKind)

	all := table.References()
	assert.Len(t, all, 3)
	for _, r := range all {
		assert.NotEqual(t, "ignored.target", r.Path)
	}
}

func TestBuild_SkipsUnnamedDeclarations(t *testing.T) {
	broken := ast.NewNode(ast.NodeFeature).
		Append("", asttest.Requirement("orphan"))
	root := asttest.File(asttest.Module("m", broken))

	table := Build("x", root)

	require.Len(t, table.Symbols, 1)
	assert.Equal(t, "m", table.Symbols[0].Path)
}

func TestBuild_TopLevelDependsOnIgnored(t *testing.T) {
	root := asttest.File(asttest.DependsOn("a"), asttest.Module("a"))

	table := Build("x", root)

	assert.Empty(t, table.References())
	assert.Len(t, table.Symbols, 1)
}

func TestBuild_NilRoot(t *testing.T) {
	table := Build("x", nil)
	require.NotNil(t, table)
	assert.Empty(t, table.Symbols)
	assert.Empty(t, table.Scopes)
}

func TestBuild_IsDeterministic(t *testing.T) {
	root := authFile()
	first := Build("a", root)
	second := Build("a", root)

	assert.Equal(t, first.Paths(), second.Paths())
	assert.Equal(t, first.References(), second.References())
}

func TestConstraintNames(t *testing.T) {
	req := asttest.Requirement("r",
		asttest.Constraint("bcrypt"),
		asttest.Requirement("nested", asttest.Constraint("not-mine")),
		asttest.Constraint("rate-limit"),
	)

	assert.Equal(t, []string{"bcrypt", "rate-limit"}, ConstraintNames(req))
	assert.Nil(t, ConstraintNames(nil))
}

func TestKind_TextRoundTrip(t *testing.T) {
	for _, k := range AllKinds {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var back Kind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("epic")))
	assert.Equal(t, "unknown", Kind(42).String())
}
