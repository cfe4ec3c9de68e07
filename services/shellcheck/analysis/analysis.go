// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis runs the shellcheck sensor on a project directory with
// a typed configuration. It is the entry point shared by the run, serve and
// watch hosts.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/pkg/process"
	"github.com/AleutianAI/shellsensor/services/shellcheck/ledger"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/sensor"
	"github.com/AleutianAI/shellsensor/services/shellcheck/sink"
	"github.com/AleutianAI/shellsensor/services/shellcheck/source"
	"github.com/AleutianAI/shellsensor/services/shellcheck/telemetry"
)

// lockPollInterval is how often a blocked run retries the project lock.
const lockPollInterval = 100 * time.Millisecond

// Service runs analyses.
//
// # Thread Safety
//
// Safe for concurrent use. Runs on the same project root are serialized by
// a per-project file lock; runs on different roots proceed in parallel.
type Service struct {
	catalog *rules.Catalog
	ledger  *ledger.Ledger
	runner  process.Runner
	metrics *telemetry.RunMetrics
	lockDir string
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithCatalog replaces the embedded rule catalog.
func WithCatalog(c *rules.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithLedger records runs in l. Runs consult it only when the
// configuration enables the ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

// WithRunner sets the process runner used under autolaunch.
func WithRunner(r process.Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithMetrics folds every run summary into m.
func WithMetrics(m *telemetry.RunMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLockDir sets where project lock files live. Defaults to os.TempDir().
func WithLockDir(dir string) Option {
	return func(s *Service) {
		s.lockDir = dir
	}
}

// New creates a Service. Without WithCatalog the embedded catalog is used.
func New(opts ...Option) (*Service, error) {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		c, err := rules.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		s.catalog = c
	}
	return s, nil
}

// Catalog returns the rule catalog in use.
func (s *Service) Catalog() *rules.Catalog {
	return s.catalog
}

// Profile builds the active profile for cfg.
func (s *Service) Profile(cfg config.Config) (*rules.Profile, error) {
	return rules.DefaultProfile(s.catalog).Narrow(cfg.Rules.Enabled, cfg.Rules.Disabled)
}

// Analyze runs the sensor on root.
//
// # Description
//
// Validates cfg, takes the project lock (waiting until ctx is done), tracks
// the project files minus cfg.Sources.Exclude, narrows the built-in
// profile and executes the sensor into a fresh collector.
//
// # Outputs
//
//   - *sink.Result: diagnostics, analysis errors and the run summary. Non-nil
//     whenever the sensor ran, including when ctx was cancelled mid-run.
//   - error: configuration, lock, project walk or cancellation failures.
func (s *Service) Analyze(ctx context.Context, root string, cfg config.Config) (*sink.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	logger := s.logger.With("root", abs)

	profile, err := s.Profile(cfg)
	if err != nil {
		return nil, err
	}

	lock, err := process.NewProjectLock(abs, s.lockDir)
	if err != nil {
		return nil, err
	}
	if err := lock.Acquire(ctx, lockPollInterval); err != nil {
		return nil, fmt.Errorf("waiting for project lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release project lock", "path", lock.Path(), "error", err)
		}
	}()

	project, err := source.NewProject(abs,
		source.WithExclude(cfg.Sources.Exclude...),
		source.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	opts := []sensor.Option{sensor.WithLogger(logger)}
	if s.runner != nil {
		opts = append(opts, sensor.WithRunner(s.runner))
	}
	if s.ledger != nil && cfg.Ledger.Enabled {
		opts = append(opts, sensor.WithLedger(s.ledger, cfg.Ledger.SkipIngested))
	}

	collector := sink.NewCollector()
	sum, runErr := sensor.New(opts...).Execute(ctx, sensor.Context{
		FS:          project,
		Config:      cfg.Settings(),
		ActiveRules: profile,
		Sink:        collector,
	})
	if sum == nil {
		return nil, runErr
	}
	if s.metrics != nil {
		s.metrics.Observe(sum)
	}

	return &sink.Result{
		Summary:     sum,
		Diagnostics: collector.Diagnostics(),
		Errors:      collector.Errors(),
		Catalog:     s.catalog,
	}, runErr
}
