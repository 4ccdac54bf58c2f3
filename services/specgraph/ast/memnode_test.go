// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTree = `{
  // emitted by the DSL parser
  "type": "source_file",
  "children": [
    {
      "type": "module_declaration",
      "start": {"row": 0, "column": 0},
      "end": {"row": 4, "column": 1},
      "children": [
        {"type": "identifier", "field": "name", "text": "auth"},
        {"type": "description", "field": "description", "text": "Authentication"},
      ]
    }
  ]
}`

func TestDecodeJSON_AcceptsComments(t *testing.T) {
	root, err := DecodeJSON([]byte(sampleTree))
	require.NoError(t, err)

	assert.Equal(t, NodeSourceFile, root.Type())
	require.Equal(t, 1, root.ChildCount())

	module := root.Child(0)
	require.NotNil(t, module)
	assert.Equal(t, NodeModule, module.Type())
	assert.Equal(t, Point{Row: 4, Column: 1}, module.EndPosition())

	name := module.ChildByFieldName(FieldName)
	require.NotNil(t, name)
	assert.Equal(t, "auth", name.Text())
	assert.Equal(t, module, name.Parent())
	assert.Equal(t, root, module.Parent())
}

func TestDecodeJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"type": `},
		{"missing type", `{"children": []}`},
		{"not an object", `[1, 2]`},
		{"null child", `{"type": "source_file", "children": [null]}`},
		{"nested null child", `{"type": "source_file", "children": [{"type": "module_declaration", "children": [null]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = DecodeJSON([]byte(tt.data))
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAST))
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.ast.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleTree), 0o600))

	root, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, root.ChildCount())

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestMemNode_AbsentLookupsReturnUntypedNil(t *testing.T) {
	n := NewNode(NodeFeature)

	assert.True(t, n.Parent() == nil)
	assert.True(t, n.Child(0) == nil)
	assert.True(t, n.Child(-1) == nil)
	assert.True(t, n.ChildByFieldName(FieldName) == nil)

	n.Children = append(n.Children, nil)
	assert.True(t, n.Child(0) == nil)
	assert.True(t, n.ChildByFieldName(FieldName) == nil)
}

func TestMemNode_TextOfInteriorNode(t *testing.T) {
	dep := NewNode(NodeDependsOn).
		Append("", Leaf(NodeReference, "auth.login")).
		Append("", Leaf(NodeReference, "billing"))

	assert.Equal(t, "auth.login billing", dep.Text())
}

func TestWalk_SkipsChildrenWhenFalse(t *testing.T) {
	root := NewNode(NodeSourceFile).
		Append("", NewNode(NodeModule).Append(FieldName, Leaf(NodeIdentifier, "a"))).
		Append("", NewNode(NodeModule).Append(FieldName, Leaf(NodeIdentifier, "b")))

	var visited []string
	Walk(root, func(n Node) bool {
		visited = append(visited, n.Type())
		return n.Type() != NodeModule
	})

	assert.Equal(t, []string{NodeSourceFile, NodeModule, NodeModule}, visited)
}
