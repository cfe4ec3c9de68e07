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
	"context"
	"fmt"
	"io"

	"github.com/AleutianAI/shellsensor/services/shellcheck/outline"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/sensor"
)

// Format names an output rendering.
type Format string

const (
	FormatSARIF Format = "sarif"
	FormatJSON  Format = "json"
	FormatText  Format = "text"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatSARIF, FormatJSON, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	switch f {
	case FormatSARIF:
		return ".sarif"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatSARIF:
		return "application/sarif+json"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Result is everything a renderer needs about a run.
type Result struct {
	Summary     *sensor.Summary
	Diagnostics []sensor.Diagnostic
	Errors      []string

	// Catalog supplies rule metadata; optional.
	Catalog *rules.Catalog
}

// Options tunes rendering.
type Options struct {
	// Color enables terminal styling in the text format.
	Color bool

	// Outline, when set, annotates SARIF results with the enclosing
	// shell function.
	Outline *outline.Cache

	// ToolVersion is reported in the SARIF driver.
	ToolVersion string
}

// Write renders res to w in format f.
func Write(ctx context.Context, w io.Writer, f Format, res *Result, opts Options) error {
	switch f {
	case FormatSARIF:
		return writeSARIF(ctx, w, res, opts)
	case FormatJSON:
		return writeJSON(w, res)
	case FormatText:
		return writeText(w, res, opts)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}
