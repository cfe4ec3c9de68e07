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
	"encoding/json"
	"io"
	"strings"

	"github.com/AleutianAI/shellsensor/services/shellcheck/sensor"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	toolName     = "ShellCheck"
	toolURI      = "https://www.shellcheck.net"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema,omitempty"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string        `json:"id"`
	Name             string        `json:"name,omitempty"`
	ShortDescription *sarifMessage `json:"shortDescription,omitempty"`
	HelpURI          string        `json:"helpUri,omitempty"`
	Properties       *ruleProps    `json:"properties,omitempty"`
}

type ruleProps struct {
	Tags     []string `json:"tags,omitempty"`
	Severity string   `json:"severity,omitempty"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool                `json:"executionSuccessful"`
	Notifications       []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level   string       `json:"level"`
	Message sarifMessage `json:"message"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level,omitempty"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical  `json:"physicalLocation"`
	LogicalLocations []sarifLogical `json:"logicalLocations,omitempty"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

type sarifLogical struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// sarifLevel maps catalog severities onto SARIF levels.
func sarifLevel(severity string) string {
	switch strings.ToUpper(severity) {
	case "BLOCKER", "CRITICAL":
		return "error"
	case "MAJOR", "MINOR":
		return "warning"
	case "INFO":
		return "note"
	default:
		return "warning"
	}
}

func buildSARIF(ctx context.Context, res *Result, opts Options) *sarifLog {
	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           toolName,
			Version:        opts.ToolVersion,
			InformationURI: toolURI,
		}},
		Results: make([]sarifResult, 0, len(res.Diagnostics)),
	}

	if res.Catalog != nil {
		for _, r := range res.Catalog.Rules() {
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:               r.Key,
				Name:             r.InternalKey,
				ShortDescription: &sarifMessage{Text: r.Name},
				HelpURI:          toolURI + "/wiki/" + r.InternalKey,
				Properties:       &ruleProps{Tags: []string{r.Tag}, Severity: r.Severity},
			})
		}
	}

	inv := sarifInvocation{ExecutionSuccessful: true}
	for _, msg := range res.Errors {
		inv.Notifications = append(inv.Notifications, sarifNotification{
			Level:   "error",
			Message: sarifMessage{Text: msg},
		})
	}
	run.Invocations = []sarifInvocation{inv}

	for _, d := range res.Diagnostics {
		run.Results = append(run.Results, sarifResultFor(ctx, d, opts))
	}

	return &sarifLog{Version: sarifVersion, Schema: sarifSchema, Runs: []sarifRun{run}}
}

func sarifResultFor(ctx context.Context, d sensor.Diagnostic, opts Options) sarifResult {
	loc := sarifLocation{
		PhysicalLocation: sarifPhysical{
			ArtifactLocation: sarifArtifact{URI: d.File.RelPath, URIBaseID: "%SRCROOT%"},
			Region:           &sarifRegion{StartLine: d.Line, StartColumn: d.Column},
		},
	}
	if opts.Outline != nil {
		if o, err := opts.Outline.ForFile(ctx, d.File.AbsPath); err == nil {
			if fn, ok := o.FunctionAt(d.Line); ok {
				loc.LogicalLocations = []sarifLogical{{Name: fn.Name, Kind: "function"}}
			}
		}
	}
	return sarifResult{
		RuleID:    d.RuleKey.Rule,
		Level:     sarifLevel(d.Severity),
		Message:   sarifMessage{Text: d.Message},
		Locations: []sarifLocation{loc},
	}
}

func writeSARIF(ctx context.Context, w io.Writer, res *Result, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(buildSARIF(ctx, res, opts))
}
