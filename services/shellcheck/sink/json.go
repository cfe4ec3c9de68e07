// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"encoding/json"
	"io"

	"github.com/AleutianAI/shellsensor/services/shellcheck/sensor"
)

type jsonReport struct {
	Summary     *sensor.Summary  `json:"summary,omitempty"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
	Errors      []string         `json:"analysis_errors"`
}

type jsonDiagnostic struct {
	File           string `json:"file"`
	Line           int    `json:"line"`
	Column         int    `json:"column,omitempty"`
	Rule           string `json:"rule"`
	Severity       string `json:"severity,omitempty"`
	LinterSeverity string `json:"linter_severity,omitempty"`
	Message        string `json:"message"`
	Artifact       string `json:"artifact,omitempty"`
}

func writeJSON(w io.Writer, res *Result) error {
	out := jsonReport{
		Summary:     res.Summary,
		Diagnostics: make([]jsonDiagnostic, 0, len(res.Diagnostics)),
		Errors:      append([]string{}, res.Errors...),
	}
	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, jsonDiagnostic{
			File:           d.File.RelPath,
			Line:           d.Line,
			Column:         d.Column,
			Rule:           d.RuleKey.String(),
			Severity:       d.Severity,
			LinterSeverity: d.LinterSeverity,
			Message:        d.Message,
			Artifact:       d.Artifact,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
