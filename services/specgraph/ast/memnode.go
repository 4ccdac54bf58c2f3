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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// MemNode is an in-memory Node.
//
// Description:
//
//	MemNode backs the JSON interchange format written by the external
//	parser and is the fixture type used throughout the tests. Children
//	are attached with Append, which records the parent pointer and the
//	optional field binding.
//
// Thread Safety:
//
//	Safe for concurrent reads once construction is complete.
type MemNode struct {
	NodeType string     `json:"type"`
	Field    string     `json:"field,omitempty"`
	Content  string     `json:"text,omitempty"`
	Start    Point      `json:"start"`
	End      Point      `json:"end"`
	Children []*MemNode `json:"children,omitempty"`

	parent *MemNode
}

// NewNode creates a detached node of the given type.
func NewNode(nodeType string) *MemNode {
	return &MemNode{NodeType: nodeType}
}

// Leaf creates a node with text content and no children.
func Leaf(nodeType, text string) *MemNode {
	return &MemNode{NodeType: nodeType, Content: text}
}

// Append attaches child under n, optionally bound to field.
//
// Returns n so calls can be chained while building fixtures.
func (n *MemNode) Append(field string, child *MemNode) *MemNode {
	child.Field = field
	child.parent = n
	n.Children = append(n.Children, child)
	return n
}

// At sets the position range and returns n.
func (n *MemNode) At(startRow, startCol, endRow, endCol int) *MemNode {
	n.Start = Point{Row: startRow, Column: startCol}
	n.End = Point{Row: endRow, Column: endCol}
	return n
}

// Type implements Node.
func (n *MemNode) Type() string { return n.NodeType }

// ChildCount implements Node.
func (n *MemNode) ChildCount() int { return len(n.Children) }

// Child implements Node.
func (n *MemNode) Child(i int) Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	if c := n.Children[i]; c != nil {
		return c
	}
	return nil
}

// Parent implements Node.
func (n *MemNode) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// ChildByFieldName implements Node.
func (n *MemNode) ChildByFieldName(name string) Node {
	for _, c := range n.Children {
		if c != nil && c.Field == name {
			return c
		}
	}
	return nil
}

// StartPosition implements Node.
func (n *MemNode) StartPosition() Point { return n.Start }

// EndPosition implements Node.
func (n *MemNode) EndPosition() Point { return n.End }

// Text implements Node.
//
// Leaves return their own content. Interior nodes without explicit
// content return the concatenated text of their children separated by
// spaces, which is enough for diagnostics.
func (n *MemNode) Text() string {
	if n.Content != "" || len(n.Children) == 0 {
		return n.Content
	}
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		if c != nil {
			parts = append(parts, c.Text())
		}
	}
	return strings.Join(parts, " ")
}

// linkParents restores parent pointers after JSON decoding and rejects
// null children.
func (n *MemNode) linkParents() error {
	for i, c := range n.Children {
		if c == nil {
			return fmt.Errorf("%w: %s node has null child at index %d", ErrInvalidAST, n.NodeType, i)
		}
		c.parent = n
		if err := c.linkParents(); err != nil {
			return err
		}
	}
	return nil
}

// DecodeJSON decodes a JSON (or JSONC) syntax tree.
//
// Description:
//
//	Comments and trailing commas are stripped before decoding so
//	hand-edited fixtures are accepted. Parent pointers are rebuilt.
//
// Inputs:
//
//	data - Encoded tree whose root object is a node.
//
// Outputs:
//
//	*MemNode - The decoded root.
//	error - ErrInvalidAST wrapped with the decoding failure.
func DecodeJSON(data []byte) (*MemNode, error) {
	var root MemNode
	if err := json.Unmarshal(jsonc.ToJSON(data), &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAST, err)
	}
	if root.NodeType == "" {
		return nil, fmt.Errorf("%w: root node has no type", ErrInvalidAST)
	}
	if err := root.linkParents(); err != nil {
		return nil, err
	}
	return &root, nil
}

// ReadFile reads and decodes a syntax tree file.
func ReadFile(path string) (*MemNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	root, err := DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}
