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
	"sync"
	"time"

	"github.com/AleutianAI/shellsensor/services/shellcheck/invoke"
)

// ArtifactSummary reports what happened to one artifact.
type ArtifactSummary struct {
	Path      string         `json:"path"`
	Digest    string         `json:"digest,omitempty"`
	Status    ArtifactStatus `json:"status"`
	Files     int            `json:"files"`
	Issues    int            `json:"issues"`
	Published int            `json:"published"`
	Error     string         `json:"error,omitempty"`
}

// Summary describes a completed run.
type Summary struct {
	RunID      string        `json:"run_id"`
	Root       string        `json:"root"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Autolaunch bool          `json:"autolaunch"`

	// Invocation is nil when autolaunch is off.
	Invocation *invoke.Result `json:"-"`

	Artifacts []ArtifactSummary `json:"artifacts"`

	// Published counts diagnostics handed to the sink.
	Published int `json:"published"`

	// Deactivated counts issues whose rule is not active.
	Deactivated int `json:"deactivated"`

	// Dropped counts issues on unresolved files.
	Dropped int `json:"dropped"`

	// OutOfRange counts issues past the end of their file.
	OutOfRange int `json:"out_of_range"`

	// Unresolved lists reported paths matching no tracked file.
	Unresolved []string `json:"unresolved,omitempty"`

	// AnalysisErrors are the messages also sent to the sink.
	AnalysisErrors []string `json:"analysis_errors,omitempty"`
}

// errorSink forwards analysis errors to the host sink and keeps a copy for
// the summary.
type errorSink struct {
	DiagnosticSink

	mu     sync.Mutex
	errors []string
}

func (s *errorSink) AnalysisError(message string) {
	s.mu.Lock()
	s.errors = append(s.errors, message)
	s.mu.Unlock()
	s.DiagnosticSink.AnalysisError(message)
}

func (s *errorSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}
