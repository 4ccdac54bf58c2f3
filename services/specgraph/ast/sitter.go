// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// SitterNode adapts a tree-sitter node to Node.
//
// Description:
//
//	The external DSL grammar is a tree-sitter grammar; its trees are
//	handed to the index through this adapter. The source bytes are
//	shared by every node of the tree and must not be modified while
//	the tree is indexed.
//
// Thread Safety:
//
//	Safe for concurrent reads. tree-sitter nodes are immutable values.
type SitterNode struct {
	node   *sitter.Node
	source []byte
}

// NewSitterNode wraps a tree-sitter node. Returns nil for a nil node.
func NewSitterNode(node *sitter.Node, source []byte) Node {
	if node == nil || node.IsNull() {
		return nil
	}
	return &SitterNode{node: node, source: source}
}

// NewSitterTree wraps the root node of a parsed tree.
func NewSitterTree(tree *sitter.Tree, source []byte) Node {
	if tree == nil {
		return nil
	}
	return NewSitterNode(tree.RootNode(), source)
}

// Raw returns the underlying tree-sitter node.
func (s *SitterNode) Raw() *sitter.Node { return s.node }

// Type implements Node.
func (s *SitterNode) Type() string { return s.node.Type() }

// ChildCount implements Node.
func (s *SitterNode) ChildCount() int { return int(s.node.ChildCount()) }

// Child implements Node.
func (s *SitterNode) Child(i int) Node {
	if i < 0 || i >= int(s.node.ChildCount()) {
		return nil
	}
	return NewSitterNode(s.node.Child(i), s.source)
}

// Parent implements Node.
func (s *SitterNode) Parent() Node {
	return NewSitterNode(s.node.Parent(), s.source)
}

// ChildByFieldName implements Node.
func (s *SitterNode) ChildByFieldName(name string) Node {
	return NewSitterNode(s.node.ChildByFieldName(name), s.source)
}

// StartPosition implements Node.
func (s *SitterNode) StartPosition() Point {
	p := s.node.StartPoint()
	return Point{Row: int(p.Row), Column: int(p.Column)}
}

// EndPosition implements Node.
func (s *SitterNode) EndPosition() Point {
	p := s.node.EndPoint()
	return Point{Row: int(p.Row), Column: int(p.Column)}
}

// Text implements Node.
func (s *SitterNode) Text() string { return s.node.Content(s.source) }
