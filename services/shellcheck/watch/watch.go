// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs an analysis when files under a project root change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch of changes triggers
// a run.
const DefaultDebounce = 500 * time.Millisecond

// Trigger runs one analysis. changed holds slash-separated paths relative
// to the root, sorted.
type Trigger func(ctx context.Context, changed []string)

// Watcher batches file events and calls a Trigger.
//
// # Description
//
// Events are debounced. While a Trigger call is in progress, further
// events are dropped: a run writes report artifacts into the root and
// must not schedule itself again.
//
// # Thread Safety
//
// Run must be called at most once.
type Watcher struct {
	root     string
	trigger  Trigger
	debounce time.Duration
	exclude  []string
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExclude ignores paths matching these doublestar patterns, relative to
// the root.
func WithExclude(patterns ...string) Option {
	return func(w *Watcher) {
		w.exclude = append(w.exclude, patterns...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New starts watching every non-excluded directory under root. Events
// that happen after New returns are delivered once Run is called.
func New(root string, trigger Trigger, opts ...Option) (*Watcher, error) {
	if trigger == nil {
		return nil, errors.New("watch: trigger is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	w := &Watcher{
		root:     abs,
		trigger:  trigger,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w.fsw = fsw
	if err := w.addRecursive(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching. Run closes the watcher on return.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// rel returns the slash path of p under the root.
func (w *Watcher) rel(p string) string {
	r, err := filepath.Rel(w.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

func (w *Watcher) excluded(p string) bool {
	rel := w.rel(p)
	base := filepath.Base(p)
	if base == ".git" || (strings.HasPrefix(base, ".") && strings.Contains(base, ".tmp-")) {
		return true
	}
	for _, pattern := range w.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern+"/**", rel); ok {
			return true
		}
	}
	return false
}

// Run delivers batches to the trigger until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	pending := map[string]struct{}{}
	var timer *time.Timer
	var timerC <-chan time.Time
	runDone := make(chan struct{}, 1)
	running := false
	dropped := 0

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if running {
				<-runDone
			}
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !w.excluded(ev.Name) {
					if err := w.addRecursive(ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			if ev.Op == fsnotify.Chmod || w.excluded(ev.Name) {
				continue
			}
			if running {
				dropped++
				continue
			}
			pending[w.rel(ev.Name)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-timerC:
			timerC = nil
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = map[string]struct{}{}

			w.logger.Info("project changed, re-running analysis", "changed", len(changed))
			running = true
			go func() {
				w.trigger(ctx, changed)
				runDone <- struct{}{}
			}()

		case <-runDone:
			running = false
			if dropped > 0 {
				w.logger.Debug("dropped events during analysis run", "events", dropped)
				dropped = 0
			}
		}
	}
}
