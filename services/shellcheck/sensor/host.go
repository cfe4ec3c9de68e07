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
	"github.com/AleutianAI/shellsensor/services/shellcheck/ledger"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/source"
)

// FileSystem is the host's view of the project files.
type FileSystem interface {
	source.Lookup
}

// Configuration is the host's flat key/value settings.
type Configuration interface {
	Bool(key string) (bool, bool)
	String(key string) (string, bool)
}

// Diagnostic is one published issue.
type Diagnostic struct {
	File    *source.TrackedFile
	Line    int
	Column  int
	Message string
	RuleKey rules.RuleKey

	// Severity comes from the active rule.
	Severity string

	// LinterSeverity is the severity shellcheck reported.
	LinterSeverity string

	// Artifact is the report the issue was read from.
	Artifact string
}

// DiagnosticSink receives the results of a run.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type DiagnosticSink interface {
	Save(d Diagnostic)
	AnalysisError(message string)
}

// Ledger records ingested artifacts and runs. *ledger.Ledger implements it.
type Ledger interface {
	Seen(digest string) (bool, error)
	RecordArtifact(rec ledger.ArtifactRecord) error
	RecordRun(rec ledger.RunRecord) error
}

// Context bundles the host collaborators for one run.
type Context struct {
	FS          FileSystem
	Config      Configuration
	ActiveRules rules.ActiveRules
	Sink        DiagnosticSink
}

// Descriptor describes the sensor to the host.
type Descriptor struct {
	Name      string
	Languages []string
}
