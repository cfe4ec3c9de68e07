// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package outline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `#!/bin/bash

setup() {
  mkdir -p "$1"
}

function deploy {
  local target=$1
  inner() {
    echo "$target"
  }
  inner
}

deploy /srv
`

func TestParse_FindsFunctions(t *testing.T) {
	o, err := Parse(context.Background(), []byte(script))
	require.NoError(t, err)

	names := make([]string, 0, len(o.Functions))
	for _, f := range o.Functions {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"setup", "deploy", "inner"}, names)
}

func TestOutline_FunctionAt(t *testing.T) {
	o, err := Parse(context.Background(), []byte(script))
	require.NoError(t, err)

	tests := []struct {
		line int
		want string
	}{
		{4, "setup"},
		{8, "deploy"},
		{10, "inner"},
		{12, "deploy"},
	}
	for _, tt := range tests {
		f, ok := o.FunctionAt(tt.line)
		require.True(t, ok, "line %d", tt.line)
		assert.Equal(t, tt.want, f.Name, "line %d", tt.line)
	}

	_, ok := o.FunctionAt(1)
	assert.False(t, ok)
	_, ok = o.FunctionAt(15)
	assert.False(t, ok)
}

func TestParse_EmptyInput(t *testing.T) {
	o, err := Parse(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, o.Functions)
}

func TestCache_ForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	c := NewCache()
	first, err := c.ForFile(context.Background(), path)
	require.NoError(t, err)
	second, err := c.ForFile(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = c.ForFile(context.Background(), filepath.Join(t.TempDir(), "missing.sh"))
	assert.Error(t, err)
}
