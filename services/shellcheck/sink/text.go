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
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorTeal    = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorInfo    = lipgloss.Color("#1D9EA3")

	fileStyle    = lipgloss.NewStyle().Bold(true)
	ruleStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	noteStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	okStyle      = lipgloss.NewStyle().Foreground(colorTeal).Bold(true)
)

func writeText(w io.Writer, res *Result, opts Options) error {
	paint := func(s lipgloss.Style, text string) string {
		if !opts.Color {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	for _, d := range res.Diagnostics {
		level := sarifLevel(d.Severity)
		style := warningStyle
		switch level {
		case "error":
			style = errorStyle
		case "note":
			style = noteStyle
		}
		pos := fmt.Sprintf("%s:%d", d.File.RelPath, d.Line)
		if d.Column > 0 {
			pos = fmt.Sprintf("%s:%d", pos, d.Column)
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s\n",
			paint(fileStyle, pos),
			paint(style, fmt.Sprintf("%-7s", level)),
			d.Message,
			paint(ruleStyle, "["+d.RuleKey.Rule+"]"),
		)
	}

	for _, msg := range res.Errors {
		fmt.Fprintf(&b, "%s %s\n", paint(errorStyle, "analysis error:"), msg)
	}

	summary := fmt.Sprintf("%d diagnostic(s)", len(res.Diagnostics))
	if s := res.Summary; s != nil {
		summary = fmt.Sprintf("%s, %d artifact(s), %d deactivated, %d unresolved file(s)",
			summary, len(s.Artifacts), s.Deactivated, len(s.Unresolved))
	}
	if len(res.Diagnostics) == 0 && len(res.Errors) == 0 {
		summary = paint(okStyle, summary)
	}
	b.WriteString(summary + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}
