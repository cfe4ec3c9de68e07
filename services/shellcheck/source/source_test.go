// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AleutianAI/shellsensor/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestTrackedFile_Lines(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		content string
		want    int
	}{
		{"", 1},
		{"one", 1},
		{"one\n", 2},
		{"one\ntwo", 2},
		{"one\ntwo\nthree\n", 4},
	}
	for i, tt := range tests {
		rel := filepath.Join("f", string(rune('a'+i)))
		writeFile(t, root, rel, tt.content)
		n, err := NewTrackedFile(root, rel).Lines()
		require.NoError(t, err)
		assert.Equal(t, tt.want, n, "%q", tt.content)
	}

	_, err := NewTrackedFile(root, "missing").Lines()
	assert.Error(t, err)
}

func TestNewProject_IndexesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.sh", "#!/bin/sh\n")
	writeFile(t, root, "lib/b.sh", "#!/bin/bash\n")
	writeFile(t, root, ".git/config", "[core]\n")
	writeFile(t, root, "vendor/x/c.sh", "#!/bin/sh\n")

	p, err := NewProject(root, WithExclude(".git/**", "vendor/**"), WithLogger(logging.Discard()))
	require.NoError(t, err)

	var rels []string
	for _, f := range p.Files() {
		rels = append(rels, f.RelPath)
	}
	assert.Equal(t, []string{"a.sh", "lib/b.sh"}, rels)

	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, abs, p.BaseDir())
}

func TestNewProject_Errors(t *testing.T) {
	_, err := NewProject(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	root := t.TempDir()
	writeFile(t, root, "file", "x")
	_, err = NewProject(filepath.Join(root, "file"))
	assert.Error(t, err)

	_, err = NewProject(root, WithExclude("["))
	assert.Error(t, err)
}

func TestProject_InputFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "deploy.sh", "echo\n")
	writeFile(t, root, "lib/util.sh", "echo\n")
	p, err := NewProject(root)
	require.NoError(t, err)

	rel := p.InputFile("deploy.sh")
	require.NotNil(t, rel)
	abs := p.InputFile(filepath.Join(p.BaseDir(), "deploy.sh"))
	assert.Same(t, rel, abs, "relative and absolute forms resolve to the same file")

	assert.Same(t, p.InputFile("lib/util.sh"), p.InputFile("./lib/../lib/util.sh"))
	assert.Nil(t, p.InputFile("nope.sh"))
	assert.Nil(t, p.InputFile(""))
	assert.Nil(t, p.InputFile("lib"), "directories are not tracked")
}

func TestResolver_ResolvesAndCaches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.sh", "echo\n")
	p, err := NewProject(root)
	require.NoError(t, err)

	rec := logging.NewRecorder()
	r := NewResolver(p, rec.Logger())

	f1, err := r.Resolve("a.sh")
	require.NoError(t, err)
	f2, err := r.Resolve("a.sh")
	require.NoError(t, err)
	assert.Same(t, f1, f2)

	for i := 0; i < 3; i++ {
		_, err := r.Resolve("ghost.sh")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnresolvedSource))
	}

	errs := rec.Filter(slog.LevelError, "was not found")
	require.Len(t, errs, 1, "one error per unresolved file")
	assert.Equal(t, "The source file 'ghost.sh' was not found.", errs[0].Message)
	assert.Equal(t, []string{"ghost.sh"}, r.Unresolved())
}

func TestResolver_Index(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.sh", "echo\n")
	writeFile(t, root, "b.sh", "echo\n")
	p, err := NewProject(root)
	require.NoError(t, err)

	r := NewResolver(p, logging.Discard())
	idx := r.Index([]string{"a.sh", filepath.Join(p.BaseDir(), "b.sh"), "c.sh"})
	assert.Len(t, idx, 2)
	assert.Equal(t, "b.sh", idx[filepath.Join(p.BaseDir(), "b.sh")].RelPath)
	_, ok := idx["c.sh"]
	assert.False(t, ok)
}

type countingLookup struct {
	Lookup
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingLookup) InputFile(path string) *TrackedFile {
	c.mu.Lock()
	c.calls[path]++
	c.mu.Unlock()
	return c.Lookup.InputFile(path)
}

func TestResolver_ConcurrentSinglePass(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.sh", "echo\n")
	p, err := NewProject(root)
	require.NoError(t, err)

	lookup := &countingLookup{Lookup: p, calls: map[string]int{}}
	rec := logging.NewRecorder()
	r := NewResolver(lookup, rec.Logger())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Resolve("a.sh")
			_, _ = r.Resolve("missing.sh")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, lookup.calls["a.sh"])
	assert.Equal(t, 1, lookup.calls["missing.sh"])
	assert.Len(t, rec.Filter(slog.LevelError, "missing.sh"), 1)
}
