// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package process runs external programs and serializes work on a project
// directory across processes.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// ErrNotFound is returned when the executable cannot be located on PATH.
var ErrNotFound = errors.New("executable not found")

// Result is the outcome of a process that ran to completion.
//
// A non-zero ExitCode is not an error at this layer; callers decide which
// exit codes they accept.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Runner abstracts process execution for testability.
//
// # Description
//
// Run executes name with args and waits for it to exit. The returned error
// is non-nil only when the process could not be started or was interrupted
// through ctx. A process that exits with any status returns a Result and a
// nil error.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// =============================================================================
// DEFAULT RUNNER
// =============================================================================

// DefaultRunner runs processes with os/exec.
type DefaultRunner struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
}

// NewDefaultRunner creates a runner that starts processes in dir.
func NewDefaultRunner(dir string) *DefaultRunner {
	return &DefaultRunner{Dir: dir}
}

// Run implements Runner.
func (r *DefaultRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return result, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return result, fmt.Errorf("starting %s: %w", name, err)
}

// =============================================================================
// MOCK RUNNER
// =============================================================================

// Call records a single invocation made through MockRunner.
type Call struct {
	Name string
	Args []string
}

// MockRunner is a Runner for tests.
//
// # Description
//
// Every call is recorded in Calls. RunFunc decides the outcome; when it is
// nil the call succeeds with an empty Result.
//
// # Thread Safety
//
// Safe for concurrent use.
type MockRunner struct {
	RunFunc func(ctx context.Context, name string, args ...string) (Result, error)

	mu    sync.Mutex
	Calls []Call
}

// Run implements Runner.
func (m *MockRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, Call{Name: name, Args: append([]string(nil), args...)})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args...)
	}
	return Result{}, nil
}

// Recorded returns a copy of the recorded calls.
func (m *MockRunner) Recorded() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.Calls))
	copy(out, m.Calls)
	return out
}
