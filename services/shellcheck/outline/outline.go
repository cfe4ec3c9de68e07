// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package outline finds the shell function enclosing a line, so that
// diagnostics can name the function they were reported in.
package outline

import (
	"context"
	"fmt"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
)

const (
	nodeFunctionDefinition = "function_definition"
	nodeWord               = "word"
)

// Function is a function definition's name and 1-based line span.
type Function struct {
	Name      string
	StartLine int
	EndLine   int
}

// Outline lists the function definitions of one script.
type Outline struct {
	Functions []Function
}

// Parse builds the outline of a bash-family script.
//
// # Description
//
// Syntax errors do not fail the parse: tree-sitter recovers and the
// functions it could still recognize are returned.
//
// # Thread Safety
//
// Safe for concurrent use; each call uses its own parser.
func Parse(ctx context.Context, content []byte) (*Outline, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(bash.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	o := &Outline{}
	collect(tree.RootNode(), content, o)
	return o, nil
}

func collect(node *sitter.Node, content []byte, o *Outline) {
	if node == nil {
		return
	}
	if node.Type() == nodeFunctionDefinition {
		if name := functionName(node, content); name != "" {
			o.Functions = append(o.Functions, Function{
				Name:      name,
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			})
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collect(node.Child(i), content, o)
	}
}

func functionName(node *sitter.Node, content []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(content)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == nodeWord {
			return child.Content(content)
		}
	}
	return ""
}

// FunctionAt returns the innermost function whose span contains line.
func (o *Outline) FunctionAt(line int) (Function, bool) {
	var best Function
	found := false
	for _, f := range o.Functions {
		if line < f.StartLine || line > f.EndLine {
			continue
		}
		if !found || f.EndLine-f.StartLine < best.EndLine-best.StartLine {
			best = f
			found = true
		}
	}
	return best, found
}

// Cache memoizes outlines per file path.
//
// # Thread Safety
//
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Outline
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Outline)}
}

// ForFile returns the outline of the file at path, parsing it on first use.
func (c *Cache) ForFile(ctx context.Context, path string) (*Outline, error) {
	c.mu.Lock()
	o, ok := c.entries[path]
	c.mu.Unlock()
	if ok {
		return o, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	o, err = Parse(ctx, content)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = o
	c.mu.Unlock()
	return o, nil
}
