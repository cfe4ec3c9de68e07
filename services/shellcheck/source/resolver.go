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
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrUnresolvedSource is returned when no tracked file matches a path.
var ErrUnresolvedSource = errors.New("source file not tracked")

// Index maps report path strings to tracked files. Unresolved paths are
// absent.
type Index map[string]*TrackedFile

// Resolver resolves linter-reported paths against a Lookup.
//
// # Description
//
// Results, including failures, are cached for the lifetime of the
// Resolver, which is one analysis run. Concurrent lookups of the same
// path share one query. A failure is logged at ERROR exactly once per
// path.
//
// # Thread Safety
//
// Safe for concurrent use.
type Resolver struct {
	fs     Lookup
	logger *slog.Logger
	group  singleflight.Group

	mu         sync.RWMutex
	cache      map[string]*TrackedFile
	unresolved []string
}

// NewResolver creates a Resolver over fs.
func NewResolver(fs Lookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		fs:     fs,
		logger: logger,
		cache:  make(map[string]*TrackedFile),
	}
}

// Resolve returns the tracked file for name.
func (r *Resolver) Resolve(name string) (*TrackedFile, error) {
	if f, ok := r.cached(name); ok {
		return resultOf(name, f)
	}

	v, _, _ := r.group.Do(name, func() (any, error) {
		if f, ok := r.cached(name); ok {
			return f, nil
		}
		f := r.fs.InputFile(name)

		r.mu.Lock()
		r.cache[name] = f
		if f == nil {
			r.unresolved = append(r.unresolved, name)
		}
		r.mu.Unlock()

		if f == nil {
			r.logger.Error(fmt.Sprintf("The source file '%s' was not found.", name), "path", name)
		}
		return f, nil
	})
	return resultOf(name, v.(*TrackedFile))
}

// Index resolves every name and returns the successful matches.
func (r *Resolver) Index(names []string) Index {
	idx := make(Index, len(names))
	for _, n := range names {
		if f, err := r.Resolve(n); err == nil {
			idx[n] = f
		}
	}
	return idx
}

// Unresolved returns the paths that failed, in first-failure order.
func (r *Resolver) Unresolved() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.unresolved))
	copy(out, r.unresolved)
	return out
}

func (r *Resolver) cached(name string) (*TrackedFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.cache[name]
	return f, ok
}

func resultOf(name string, f *TrackedFile) (*TrackedFile, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedSource, name)
	}
	return f, nil
}
