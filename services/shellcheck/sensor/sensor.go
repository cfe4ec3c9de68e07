// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/pkg/process"
	"github.com/AleutianAI/shellsensor/services/shellcheck/invoke"
	"github.com/AleutianAI/shellsensor/services/shellcheck/ledger"
	"github.com/AleutianAI/shellsensor/services/shellcheck/report"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/source"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Name is the sensor's display name.
const Name = "ShellCheck Sensor"

// =============================================================================
// SENSOR
// =============================================================================

// Sensor runs the ingestion pipeline.
//
// # Description
//
// A Sensor holds only collaborators that outlive a run (process runner,
// ledger). Everything per-run arrives through Context, so one Sensor may
// serve many concurrent runs on different projects.
//
// # Thread Safety
//
// Safe for concurrent use.
type Sensor struct {
	logger       *slog.Logger
	runner       process.Runner
	ledger       Ledger
	skipIngested bool
	parallelism  int
	now          func() time.Time
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sensor) {
		s.logger = l
	}
}

// WithRunner sets the process runner used under autolaunch.
func WithRunner(r process.Runner) Option {
	return func(s *Sensor) {
		s.runner = r
	}
}

// WithLedger records ingested artifacts and runs in l. With skipIngested,
// artifacts whose content was ingested by an earlier run are not
// published again.
func WithLedger(l Ledger, skipIngested bool) Option {
	return func(s *Sensor) {
		s.ledger = l
		s.skipIngested = skipIngested
	}
}

// WithParallelism bounds concurrent artifact parsing. Default: 4.
func WithParallelism(n int) Option {
	return func(s *Sensor) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sensor) {
		s.now = now
	}
}

// New creates a Sensor.
func New(opts ...Option) *Sensor {
	s := &Sensor{
		logger:      slog.Default(),
		parallelism: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Describe returns the sensor descriptor.
func (s *Sensor) Describe() Descriptor {
	return Descriptor{Name: Name, Languages: []string{rules.Language}}
}

// runSettings are the configuration values read at the start of a run.
type runSettings struct {
	autolaunch bool
	pattern    string
	executable string
	timeout    time.Duration
}

// Execute performs one analysis run.
//
// # Description
//
// Reads the settings, launches shellcheck when autolaunch is on,
// discovers and parses artifacts, and publishes diagnostics to sc.Sink.
// Every recoverable failure is logged, sent to sc.Sink.AnalysisError and
// listed in the Summary; the run continues.
//
// # Outputs
//
//   - *Summary: what the run did. Non-nil whenever sc is valid.
//   - error: ErrInvalidContext for a missing collaborator, or the context
//     error when ctx is cancelled (the Summary then covers the work done).
func (s *Sensor) Execute(ctx context.Context, sc Context) (*Summary, error) {
	if sc.FS == nil || sc.Config == nil || sc.ActiveRules == nil || sc.Sink == nil {
		return nil, fmt.Errorf("%w: file system, configuration, active rules and sink are required", ErrInvalidContext)
	}

	start := s.now()
	sum := &Summary{
		RunID:     uuid.NewString(),
		Root:      sc.FS.BaseDir(),
		StartedAt: start,
	}
	logger := s.logger.With("run_id", sum.RunID)
	sink := &errorSink{DiagnosticSink: sc.Sink}

	ctx, span := tracer.Start(ctx, "Sensor.Execute", trace.WithAttributes(
		attribute.String("run_id", sum.RunID),
		attribute.String("root", sum.Root),
	))
	defer span.End()

	settings := s.readSettings(sc.Config, logger, sink)
	sum.Autolaunch = settings.autolaunch

	fresh := map[string]bool{}
	if settings.autolaunch {
		res := s.launch(ctx, sum.Root, settings, logger, sink)
		sum.Invocation = &res
		for _, a := range res.Artifacts() {
			fresh[a] = true
		}
	}

	err := s.ingest(ctx, sc, sum, settings, fresh, logger, sink)

	sum.AnalysisErrors = sink.messages()
	sum.Duration = s.now().Sub(start)
	recordRun(ctx, sum)
	s.recordHistory(sum, logger)

	span.SetAttributes(
		attribute.Int("published", sum.Published),
		attribute.Int("analysis_errors", len(sum.AnalysisErrors)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}

	logger.Info("shellcheck analysis complete",
		"artifacts", len(sum.Artifacts),
		"published", sum.Published,
		"deactivated", sum.Deactivated,
		"unresolved_files", len(sum.Unresolved),
		"analysis_errors", len(sum.AnalysisErrors),
		"duration", sum.Duration,
	)
	return sum, nil
}

func (s *Sensor) readSettings(cfg Configuration, logger *slog.Logger, sink DiagnosticSink) runSettings {
	rs := runSettings{
		pattern:    config.DefaultReportsRegex,
		executable: invoke.DefaultExecutable,
	}
	if v, ok := cfg.Bool(config.KeyAutolaunch); ok {
		rs.autolaunch = v
	}
	if v, ok := cfg.String(config.KeyReportsRegex); ok && v != "" {
		rs.pattern = v
	}
	if v, ok := cfg.String(config.KeyExecutable); ok && v != "" {
		rs.executable = v
	}
	if v, ok := cfg.String(config.KeyTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			logger.Error("ignoring invalid shellcheck timeout", "value", v)
			sink.AnalysisError(fmt.Sprintf("invalid %s %q", config.KeyTimeout, v))
		} else {
			rs.timeout = d
		}
	}
	return rs
}

func (s *Sensor) launch(ctx context.Context, root string, rs runSettings, logger *slog.Logger, sink DiagnosticSink) invoke.Result {
	opts := []invoke.Option{
		invoke.WithExecutable(rs.executable),
		invoke.WithTimeout(rs.timeout),
		invoke.WithLogger(logger),
	}
	if s.runner != nil {
		opts = append(opts, invoke.WithRunner(s.runner))
	}
	res := invoke.New(root, opts...).Run(ctx)

	for _, err := range res.DetectErrors {
		sink.AnalysisError(err.Error())
	}
	for _, o := range res.Outcomes {
		if o.Err != nil {
			sink.AnalysisError(o.Err.Error())
		}
	}
	return res
}

type parsedArtifact struct {
	artifact Artifact
	report   *report.Report
	err      error
}

func (s *Sensor) ingest(ctx context.Context, sc Context, sum *Summary, rs runSettings, fresh map[string]bool, logger *slog.Logger, sink DiagnosticSink) error {
	ctx, span := tracer.Start(ctx, "Sensor.ingest")
	defer span.End()

	pattern, err := CompilePattern(rs.pattern)
	if err != nil {
		logger.Error("invalid report pattern, using the default", "pattern", rs.pattern, "error", err)
		sink.AnalysisError(fmt.Sprintf("invalid %s %q: %v", config.KeyReportsRegex, rs.pattern, err))
		pattern = defaultPattern
	}

	found := (&discovery{
		root:       sum.Root,
		pattern:    pattern,
		autolaunch: rs.autolaunch,
		fresh:      fresh,
		logger:     logger,
	}).run()
	for _, err := range found.errs {
		logger.Error("report discovery failed", "error", err)
		sink.AnalysisError(err.Error())
	}
	sum.Artifacts = append(sum.Artifacts, found.skipped...)

	candidates := s.dropIngested(found.artifacts, sum, logger)
	if len(candidates) == 0 {
		logger.Info("no shellcheck report found", "pattern", rs.pattern)
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	parsed := make([]parsedArtifact, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, a := range candidates {
		i, a := i, a
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := report.ParseFile(a.Path)
			parsed[i] = parsedArtifact{artifact: a, report: rep, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var names []string
	for _, p := range parsed {
		if p.err == nil {
			names = append(names, p.report.FileNames()...)
		}
	}
	resolver := source.NewResolver(sc.FS, logger)
	pub := &publisher{
		sink:   sink,
		filter: rules.NewFilter(sc.ActiveRules, logger),
		active: sc.ActiveRules,
		index:  resolver.Index(names),
		logger: logger,
	}
	sum.Unresolved = resolver.Unresolved()

	for _, p := range parsed {
		as := ArtifactSummary{Path: p.artifact.Path, Digest: p.artifact.Digest}
		if p.err != nil {
			logger.Error("cannot parse shellcheck report", "path", p.artifact.Path, "error", p.err)
			sink.AnalysisError(p.err.Error())
			as.Status = StatusFailed
			as.Error = p.err.Error()
			sum.Artifacts = append(sum.Artifacts, as)
			continue
		}

		st := pub.publish(p.artifact.Path, p.report)
		as.Status = StatusIngested
		as.Files, as.Issues, as.Published = st.files, st.issues, st.published
		sum.Artifacts = append(sum.Artifacts, as)
		sum.Published += st.published
		sum.Deactivated += st.deactivated
		sum.Dropped += st.dropped
		sum.OutOfRange += st.outOfRange

		s.recordArtifact(sum, as, logger)
	}

	span.SetAttributes(attribute.Int("artifacts", len(candidates)))
	return nil
}

func (s *Sensor) dropIngested(artifacts []Artifact, sum *Summary, logger *slog.Logger) []Artifact {
	if s.ledger == nil || !s.skipIngested {
		return artifacts
	}
	out := artifacts[:0:0]
	for _, a := range artifacts {
		seen, err := s.ledger.Seen(a.Digest)
		if err != nil {
			logger.Warn("ledger lookup failed, ingesting anyway", "path", a.Path, "error", err)
		}
		if seen {
			logger.Info("report already ingested, skipping", "path", a.Path, "digest", a.Digest)
			sum.Artifacts = append(sum.Artifacts, ArtifactSummary{Path: a.Path, Digest: a.Digest, Status: StatusAlreadyIngested})
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *Sensor) recordArtifact(sum *Summary, as ArtifactSummary, logger *slog.Logger) {
	if s.ledger == nil {
		return
	}
	err := s.ledger.RecordArtifact(ledger.ArtifactRecord{
		Digest:     as.Digest,
		Path:       as.Path,
		RunID:      sum.RunID,
		IngestedAt: s.now(),
		Issues:     as.Issues,
		Published:  as.Published,
	})
	if err != nil {
		logger.Warn("cannot record artifact in ledger", "path", as.Path, "error", err)
	}
}

func (s *Sensor) recordHistory(sum *Summary, logger *slog.Logger) {
	if s.ledger == nil {
		return
	}
	err := s.ledger.RecordRun(ledger.RunRecord{
		ID:             sum.RunID,
		Root:           sum.Root,
		StartedAt:      sum.StartedAt,
		Duration:       sum.Duration,
		Autolaunch:     sum.Autolaunch,
		Artifacts:      len(sum.Artifacts),
		Published:      sum.Published,
		AnalysisErrors: len(sum.AnalysisErrors),
	})
	if err != nil {
		logger.Warn("cannot record run in ledger", "error", err)
	}
}
