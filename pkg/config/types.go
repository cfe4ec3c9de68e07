// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates .shellsensor.yaml.
package config

import "time"

// FileName is the project-level configuration file looked up in the
// project root.
const FileName = ".shellsensor.yaml"

// Configuration keys exposed through Settings.
const (
	KeyAutolaunch   = "shellcheck.autolaunch"
	KeyReportsRegex = "shellcheck.reports.regex"
	KeyExecutable   = "shellcheck.executable"
	KeyTimeout      = "shellcheck.timeout"
)

// DefaultReportsRegex matches the artifacts written by autolaunch.
const DefaultReportsRegex = `.*-shellcheck-report\.xml`

// Config is the full shellsensor configuration.
type Config struct {
	ShellCheck ShellCheckConfig `yaml:"shellcheck"`
	Rules      RulesConfig      `yaml:"rules"`
	Sources    SourcesConfig    `yaml:"sources"`
	Output     OutputConfig     `yaml:"output"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ShellCheckConfig controls linter invocation and report discovery.
type ShellCheckConfig struct {
	// Autolaunch runs the linter before ingesting reports.
	Autolaunch bool `yaml:"autolaunch"`

	// Executable is the linter binary name or path.
	Executable string `yaml:"executable" validate:"required"`

	// ReportsRegex selects artifacts among the project root entries.
	ReportsRegex string `yaml:"reports_regex" validate:"required,regex"`

	// Timeout bounds each dialect invocation. Zero means no limit.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// RulesConfig narrows the built-in profile.
type RulesConfig struct {
	// Enabled, when non-empty, restricts the profile to these rule ids.
	// Both "SC2086" and "ShellCheck.SC2086" are accepted.
	Enabled []string `yaml:"enabled,omitempty" validate:"dive,ruleid"`

	// Disabled removes rule ids from the profile.
	Disabled []string `yaml:"disabled,omitempty" validate:"dive,ruleid"`
}

// SourcesConfig controls which project files are tracked.
type SourcesConfig struct {
	// Exclude holds doublestar patterns relative to the project root.
	Exclude []string `yaml:"exclude,omitempty" validate:"dive,glob"`
}

// OutputConfig controls the rendered diagnostics.
type OutputConfig struct {
	Format string `yaml:"format" validate:"oneof=sarif json text"`

	// Path is the destination file. Empty means stdout.
	Path string `yaml:"path"`

	// Upload is an optional gs://bucket/prefix destination.
	Upload string `yaml:"upload" validate:"omitempty,startswith=gs://"`

	// Outline annotates SARIF results with the enclosing shell function.
	Outline bool `yaml:"outline"`
}

// LedgerConfig controls the artifact ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`

	// SkipIngested ignores artifacts whose content was already ingested.
	SkipIngested bool `yaml:"skip_ingested"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
	Dir    string `yaml:"dir"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	Traces   string `yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics  string `yaml:"metrics" validate:"oneof=none stdout prometheus"`
	Endpoint string `yaml:"endpoint"`
}

// ServerConfig configures the serve host.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// WatchConfig configures the watch host.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		ShellCheck: ShellCheckConfig{
			Executable:   "shellcheck",
			ReportsRegex: DefaultReportsRegex,
		},
		Sources: SourcesConfig{
			Exclude: []string{".git/**"},
		},
		Output: OutputConfig{
			Format: "text",
		},
		Ledger: LedgerConfig{
			Path: "~/.shellsensor/ledger",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Telemetry: TelemetryConfig{
			Traces:  "none",
			Metrics: "none",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:12230",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}
