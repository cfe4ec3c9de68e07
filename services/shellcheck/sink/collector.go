// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sink collects diagnostics from a run and renders them as SARIF,
// JSON or text, optionally uploading the rendering to Cloud Storage.
package sink

import (
	"sync"

	"github.com/AleutianAI/shellsensor/services/shellcheck/sensor"
)

// Collector is an in-memory sensor.DiagnosticSink.
//
// # Thread Safety
//
// Safe for concurrent use.
type Collector struct {
	mu          sync.Mutex
	diagnostics []sensor.Diagnostic
	errors      []string
}

var _ sensor.DiagnosticSink = (*Collector)(nil)

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Save implements sensor.DiagnosticSink.
func (c *Collector) Save(d sensor.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnostics = append(c.diagnostics, d)
}

// AnalysisError implements sensor.DiagnosticSink.
func (c *Collector) AnalysisError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, message)
}

// Diagnostics returns the saved diagnostics in arrival order.
func (c *Collector) Diagnostics() []sensor.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sensor.Diagnostic(nil), c.diagnostics...)
}

// Errors returns the analysis errors in arrival order.
func (c *Collector) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errors...)
}
