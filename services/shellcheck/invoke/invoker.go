// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package invoke runs shellcheck once per shell dialect over the scripts in
// a project root and stores its checkstyle output as report artifacts.
package invoke

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/shellsensor/pkg/process"
	"github.com/AleutianAI/shellsensor/services/shellcheck/detect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Dialects are the --shell values shellcheck is invoked with, in order.
var Dialects = []string{"sh", "dash", "bash", "ksh"}

const (
	// DefaultExecutable is looked up on PATH.
	DefaultExecutable = "shellcheck"

	// OutputFormat is passed with -f.
	OutputFormat = "checkstyle"

	artifactSuffix = "-shellcheck-report.xml"
)

// ArtifactName returns the report file name written for dialect.
func ArtifactName(dialect string) string {
	return dialect + artifactSuffix
}

// Args builds the argument list for one invocation.
func Args(files []string, dialect string) []string {
	args := make([]string, 0, len(files)+3)
	args = append(args, files...)
	return append(args, "--shell="+dialect, "-f", OutputFormat)
}

// =============================================================================
// INVOKER
// =============================================================================

// Invoker runs shellcheck for each dialect over a project root.
//
// # Description
//
// Only direct entries of the root are considered; subdirectories are not
// searched. A file belongs to a dialect when its "#!/bin/" shebang names
// exactly that dialect. Exit codes 0 and 1 are success; any other status
// is a failure for that dialect only and its artifact is not written.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent runs on the same root overwrite each
// other's artifacts; hosts serialize them with process.ProjectLock.
type Invoker struct {
	root       string
	runner     process.Runner
	executable string
	timeout    time.Duration
	dialects   []string
	logger     *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithRunner sets the process runner. Default: process.DefaultRunner in root.
func WithRunner(r process.Runner) Option {
	return func(i *Invoker) {
		i.runner = r
	}
}

// WithExecutable overrides the shellcheck binary.
func WithExecutable(path string) Option {
	return func(i *Invoker) {
		if path != "" {
			i.executable = path
		}
	}
}

// WithTimeout bounds each dialect invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		i.timeout = d
	}
}

// WithDialects restricts the dialects that are run.
func WithDialects(dialects ...string) Option {
	return func(i *Invoker) {
		i.dialects = dialects
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) {
		i.logger = l
	}
}

// New creates an Invoker for root.
func New(root string, opts ...Option) *Invoker {
	i := &Invoker{
		root:       root,
		executable: DefaultExecutable,
		dialects:   Dialects,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.runner == nil {
		i.runner = process.NewDefaultRunner(root)
	}
	return i
}

// Outcome is the result of one dialect.
type Outcome struct {
	Dialect string

	// Files are the absolute paths passed to the linter.
	Files []string

	// Artifact is the written report path; empty unless the run succeeded.
	Artifact string

	// Skipped is true when no script declared this dialect.
	Skipped bool

	ExitCode int
	Duration time.Duration

	// Err is a *LinterError or an artifact write failure.
	Err error
}

// Succeeded reports whether an artifact was produced.
func (o Outcome) Succeeded() bool {
	return !o.Skipped && o.Err == nil
}

// Result collects every dialect outcome of a Run.
type Result struct {
	// Outcomes are in dialect order.
	Outcomes []Outcome

	// DetectErrors are per-file read failures during shebang detection.
	DetectErrors []error
}

// Artifacts returns the paths written by successful dialects.
func (r Result) Artifacts() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			out = append(out, o.Artifact)
		}
	}
	return out
}

// Run invokes every dialect concurrently.
//
// # Description
//
// Never fails as a whole: each dialect's failure is reported in its
// Outcome and logged, and the remaining dialects proceed.
func (i *Invoker) Run(ctx context.Context) Result {
	ctx, span := tracer.Start(ctx, "Invoker.Run",
		trace.WithAttributes(attribute.String("root", i.root)),
	)
	defer span.End()

	byDialect, detectErrs := i.Classify()
	outcomes := make([]Outcome, len(i.dialects))

	var g errgroup.Group
	g.SetLimit(len(i.dialects))
	for idx, dialect := range i.dialects {
		idx, dialect := idx, dialect
		g.Go(func() error {
			outcomes[idx] = i.invoke(ctx, dialect, byDialect[dialect])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("dialects.failed", failed))
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d dialect(s) failed", failed))
	}
	return Result{Outcomes: outcomes, DetectErrors: detectErrs}
}

// Classify groups the regular files directly under root by detected
// dialect. Paths are absolute and in directory order.
func (i *Invoker) Classify() (map[string][]string, []error) {
	abs, err := filepath.Abs(i.root)
	if err != nil {
		return nil, []error{fmt.Errorf("resolving root: %w", err)}
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		i.logger.Error("cannot list project root", "root", abs, "error", err)
		return nil, []error{fmt.Errorf("listing %s: %w", abs, err)}
	}

	wanted := make(map[string]bool, len(i.dialects))
	for _, d := range i.dialects {
		wanted[d] = true
	}

	byDialect := make(map[string][]string)
	var errs []error
	for _, e := range entries {
		path := filepath.Join(abs, e.Name())
		interp, err := detect.Interpreter(path)
		if err != nil {
			if errors.Is(err, detect.ErrNotRegular) {
				i.logger.Debug("skipping non-regular entry", "path", path)
				continue
			}
			i.logger.Warn("cannot read script header", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		if wanted[interp] {
			byDialect[interp] = append(byDialect[interp], path)
		}
	}
	return byDialect, errs
}

func (i *Invoker) invoke(ctx context.Context, dialect string, files []string) Outcome {
	out := Outcome{Dialect: dialect, Files: files}
	logger := i.logger.With("dialect", dialect)

	if len(files) == 0 {
		logger.Info("no script declares this dialect, skipping shellcheck")
		out.Skipped = true
		return out
	}

	ctx, span := tracer.Start(ctx, "Invoker.invoke", trace.WithAttributes(
		attribute.String("dialect", dialect),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	runCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	logger.Info("running shellcheck", "files", len(files))
	start := time.Now()
	res, err := i.runner.Run(runCtx, i.executable, Args(files, dialect)...)
	out.Duration = time.Since(start)
	out.ExitCode = res.ExitCode

	if err != nil {
		kind := ErrLinterFailed
		switch {
		case errors.Is(err, process.ErrNotFound):
			kind = ErrLinterNotFound
		case errors.Is(err, context.DeadlineExceeded):
			kind = ErrLinterTimeout
		case errors.Is(err, context.Canceled):
			kind = ErrLinterInterrupted
		}
		out.ExitCode = -1
		out.Err = &LinterError{Dialect: dialect, ExitCode: -1, Err: fmt.Errorf("%w: %v", kind, err)}
		logger.Error("shellcheck could not run", "error", err)
		return i.finish(ctx, span, out, "error")
	}

	if res.ExitCode != 0 && res.ExitCode != 1 {
		logger.Error("shellcheck failed", "exit_code", res.ExitCode)
		logStderr(logger, res.Stderr)
		out.Err = (&LinterError{Dialect: dialect, ExitCode: res.ExitCode, Err: ErrLinterFailed}).WithStderr(string(res.Stderr))
		return i.finish(ctx, span, out, "failed")
	}

	artifact := filepath.Join(i.root, ArtifactName(dialect))
	if abs, err := filepath.Abs(artifact); err == nil {
		artifact = abs
	}
	if err := writeArtifact(artifact, res.Stdout); err != nil {
		logger.Error("cannot write shellcheck report", "path", artifact, "error", err)
		out.Err = err
		return i.finish(ctx, span, out, "error")
	}
	out.Artifact = artifact
	logger.Info("shellcheck report written", "path", artifact, "exit_code", res.ExitCode)
	return i.finish(ctx, span, out, "success")
}

func (i *Invoker) finish(ctx context.Context, span trace.Span, out Outcome, outcome string) Outcome {
	recordInvocation(ctx, out.Dialect, outcome, len(out.Files), out.Duration)
	span.SetAttributes(attribute.String("outcome", outcome), attribute.Int("exit_code", out.ExitCode))
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	return out
}

func logStderr(logger *slog.Logger, stderr []byte) {
	sc := bufio.NewScanner(bytes.NewReader(stderr))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			logger.Warn("shellcheck stderr", "line", line)
		}
	}
}
