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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/shellsensor/services/shellcheck/report"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/source"
)

// publisher turns parsed reports into diagnostics.
//
// Reports are published one after the other in discovery order, so the
// sink sees a deterministic sequence.
type publisher struct {
	sink   DiagnosticSink
	filter *rules.Filter
	active rules.ActiveRules
	index  source.Index
	logger *slog.Logger
}

type publishStats struct {
	files       int
	issues      int
	published   int
	deactivated int
	dropped     int
	outOfRange  int
}

// publish emits one diagnostic per accepted issue on a resolved file.
//
// The rule is checked first so that deactivated rules are reported even
// for unresolved files. Issues on unresolved files are dropped silently;
// the resolver already logged the file once. Issues past the end of their
// file cannot be anchored and are reported as analysis errors.
func (p *publisher) publish(artifact string, rep *report.Report) publishStats {
	st := publishStats{files: len(rep.Files)}

	for _, fr := range rep.Files {
		file := p.index[fr.Name]
		for _, issue := range fr.Issues {
			st.issues++

			if !p.filter.Accept(issue.Source) {
				st.deactivated++
				continue
			}
			if file == nil {
				st.dropped++
				continue
			}

			lines, err := file.Lines()
			if err != nil {
				p.logger.Error("cannot read tracked file", "path", file.AbsPath, "error", err)
				p.sink.AnalysisError(fmt.Sprintf("cannot read %s: %v", file.RelPath, err))
				st.dropped++
				continue
			}
			if issue.Line > lines {
				err := fmt.Errorf("%w: %s:%d (file has %d lines, rule %s)", ErrLineOutOfRange, file.RelPath, issue.Line, lines, issue.Source)
				p.logger.Warn("issue line out of range", "path", file.RelPath, "line", issue.Line, "lines", lines, "rule", issue.Source)
				p.sink.AnalysisError(err.Error())
				st.outOfRange++
				continue
			}

			key := p.filter.Key(issue.Source)
			severity := ""
			if ar, ok := p.active.Find(key); ok {
				severity = ar.Severity
			}
			p.sink.Save(Diagnostic{
				File:           file,
				Line:           issue.Line,
				Column:         issue.Column,
				Message:        issue.Message,
				RuleKey:        key,
				Severity:       severity,
				LinterSeverity: issue.Severity,
				Artifact:       artifact,
			})
			st.published++
		}
	}
	return st
}
