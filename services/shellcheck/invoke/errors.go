// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package invoke

import (
	"errors"
	"fmt"
)

var (
	// ErrLinterFailed indicates the linter exited with a status other than
	// 0 (no findings) or 1 (findings).
	ErrLinterFailed = errors.New("linter execution failed")

	// ErrLinterNotFound indicates the executable could not be started.
	ErrLinterNotFound = errors.New("linter not installed")

	// ErrLinterTimeout indicates the configured timeout was exceeded.
	ErrLinterTimeout = errors.New("linter timeout")

	// ErrLinterInterrupted indicates the run was cancelled.
	ErrLinterInterrupted = errors.New("linter interrupted")
)

// LinterError describes a failed dialect invocation.
type LinterError struct {
	// Dialect is the --shell value of the failed invocation.
	Dialect string

	// ExitCode is the process status, or -1 when it did not run to
	// completion.
	ExitCode int

	Err error

	// Stderr is the captured standard error, if any.
	Stderr string
}

func (e *LinterError) Error() string {
	msg := fmt.Sprintf("shellcheck (--shell=%s): %v", e.Dialect, e.Err)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	return msg
}

func (e *LinterError) Unwrap() error {
	return e.Err
}

// WithStderr returns a copy carrying stderr.
func (e *LinterError) WithStderr(stderr string) *LinterError {
	c := *e
	c.Stderr = stderr
	return &c
}
