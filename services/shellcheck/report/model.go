// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report decodes checkstyle-format XML produced by shellcheck.
package report

// Report is one decoded checkstyle artifact.
//
// A Report is created fresh by Parse and is not modified afterwards.
type Report struct {
	// Version is the checkstyle format version as emitted (for example "4.3").
	Version string

	// Files are in document order.
	Files []FileReport
}

// FileReport groups the issues reported against one path.
type FileReport struct {
	// Name is the path exactly as the linter emitted it: relative to the
	// linter's working directory or absolute.
	Name string

	Issues []Issue
}

// Issue is a single finding.
type Issue struct {
	// Line is 1-based and always positive.
	Line int

	// Column is advisory; 0 when absent.
	Column int

	// Severity is advisory ("error", "warning", "info", "style").
	Severity string

	Message string

	// Source is the linter rule identifier, for example "SC2086".
	Source string
}

// IssueCount returns the number of issues across all files.
func (r *Report) IssueCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Issues)
	}
	return n
}

// FileNames returns the distinct file names in first-seen order.
func (r *Report) FileNames() []string {
	seen := make(map[string]struct{}, len(r.Files))
	names := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		if _, ok := seen[f.Name]; ok {
			continue
		}
		seen[f.Name] = struct{}{}
		names = append(names, f.Name)
	}
	return names
}
