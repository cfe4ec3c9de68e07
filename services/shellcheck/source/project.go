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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Lookup is the host file system view used during resolution.
type Lookup interface {
	// BaseDir is the absolute project root.
	BaseDir() string

	// InputFile returns the tracked file whose relative or absolute path
	// equals path, or nil.
	InputFile(path string) *TrackedFile
}

// Project is a Lookup over the files found on disk under a root.
//
// # Description
//
// The tree is walked once by NewProject. Directories and files whose
// slash-separated relative path matches an exclusion pattern
// (doublestar syntax) are not tracked. Symbolic links to regular files
// are tracked; directory links are not followed.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type Project struct {
	base  string
	files []*TrackedFile
	byAbs map[string]*TrackedFile
}

var _ Lookup = (*Project)(nil)

type projectOptions struct {
	exclude []string
	logger  *slog.Logger
}

// ProjectOption configures NewProject.
type ProjectOption func(*projectOptions)

// WithExclude adds doublestar exclusion patterns.
func WithExclude(patterns ...string) ProjectOption {
	return func(o *projectOptions) {
		o.exclude = append(o.exclude, patterns...)
	}
}

// WithLogger sets the logger used for walk warnings.
func WithLogger(l *slog.Logger) ProjectOption {
	return func(o *projectOptions) {
		o.logger = l
	}
}

// NewProject indexes every regular file under root.
func NewProject(root string, opts ...ProjectOption) (*Project, error) {
	o := projectOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	for _, p := range o.exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclusion pattern %q", p)
		}
	}

	base, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", base)
	}

	p := &Project{base: base, byAbs: make(map[string]*TrackedFile)}
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			o.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if excluded(o.exclude, rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isRegular(path, d) {
			return nil
		}

		f := NewTrackedFile(base, rel)
		p.files = append(p.files, f)
		p.byAbs[f.AbsPath] = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", base, err)
	}

	sort.Slice(p.files, func(i, j int) bool { return p.files[i].RelPath < p.files[j].RelPath })
	return p, nil
}

// BaseDir implements Lookup.
func (p *Project) BaseDir() string {
	return p.base
}

// InputFile implements Lookup. Relative paths are taken relative to the
// base dir.
func (p *Project) InputFile(path string) *TrackedFile {
	if path == "" {
		return nil
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.base, filepath.FromSlash(path))
	}
	return p.byAbs[filepath.Clean(abs)]
}

// Files returns the tracked files sorted by relative path.
func (p *Project) Files() []*TrackedFile {
	out := make([]*TrackedFile, len(p.files))
	copy(out, p.files)
	return out
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
