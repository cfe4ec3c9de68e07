// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/services/shellcheck/outline"
	"github.com/AleutianAI/shellsensor/services/shellcheck/sink"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

type runFlags struct {
	autolaunch   bool
	reportsRegex string
	executable   string
	timeout      time.Duration
	format       string
	output       string
	upload       string
	credentials  string
	metricsFile  string
	outline      bool
	failOnIssues bool
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [project-root]",
		Short: "Run one analysis and print the diagnostics",
		Long: `Discovers checkstyle reports in the project root and publishes their
issues as diagnostics. With --autolaunch, shellcheck is first run once per
dialect (sh, dash, bash, ksh) on the scripts whose shebang names it.

Exit status is 0 when the analysis completes, 2 with --fail-on-issues when
diagnostics were published, and 1 on configuration or host failures.

Examples:
  shellsensor run
  shellsensor run ./repo --autolaunch --format sarif --output shellcheck.sarif
  shellsensor run --reports-regex 'ci-.*\.xml' --fail-on-issues`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalysis(cmd, projectRoot(args), f)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.autolaunch, "autolaunch", false, "Run shellcheck before reading reports")
	fl.StringVar(&f.reportsRegex, "reports-regex", "", "Regex selecting report files in the project root")
	fl.StringVar(&f.executable, "executable", "", "shellcheck binary name or path")
	fl.DurationVar(&f.timeout, "timeout", 0, "Per-dialect shellcheck timeout (0 = none)")
	fl.StringVarP(&f.format, "format", "f", "", "Output format: sarif, json, text")
	fl.StringVarP(&f.output, "output", "o", "", "Write output to this file instead of stdout")
	fl.StringVar(&f.upload, "upload", "", "Also upload the output to gs://bucket/prefix")
	fl.StringVar(&f.credentials, "credentials", "", "Service account key for --upload (default: application default credentials)")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics in Prometheus textfile format")
	fl.BoolVar(&f.outline, "outline", false, "Annotate SARIF results with the enclosing shell function")
	fl.BoolVar(&f.failOnIssues, "fail-on-issues", false, "Exit with status 2 when diagnostics are published")
	return cmd
}

// applyRunFlags overrides cfg with the flags set on cmd.
func applyRunFlags(cmd *cobra.Command, f *runFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("autolaunch") {
		cfg.ShellCheck.Autolaunch = f.autolaunch
	}
	if changed("reports-regex") {
		cfg.ShellCheck.ReportsRegex = f.reportsRegex
	}
	if changed("executable") {
		cfg.ShellCheck.Executable = f.executable
	}
	if changed("timeout") {
		cfg.ShellCheck.Timeout = f.timeout
	}
	if changed("format") {
		cfg.Output.Format = f.format
	}
	if changed("output") {
		cfg.Output.Path = f.output
	}
	if changed("upload") {
		cfg.Output.Upload = f.upload
	}
	if changed("outline") {
		cfg.Output.Outline = f.outline
	}
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func (a *app) runAnalysis(cmd *cobra.Command, root string, f *runFlags) error {
	ctx := cmd.Context()
	e, err := a.setup(ctx, root)
	if err != nil {
		return err
	}
	defer e.Close()

	cfg := e.cfg
	applyRunFlags(cmd, f, &cfg)
	format, err := sink.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	res, runErr := e.svc.Analyze(ctx, root, cfg)
	if res == nil {
		return runErr
	}

	data, err := a.render(ctx, res, format, cfg.Output)
	if err != nil {
		return err
	}
	if err := a.emit(data, cfg.Output.Path); err != nil {
		return err
	}

	if cfg.Output.Upload != "" {
		if err := upload(ctx, e, cfg.Output.Upload, f.credentials, res.Summary.RunID+format.Extension(), data, format); err != nil {
			return err
		}
	}
	if f.metricsFile != "" {
		if err := e.metrics.WriteToTextfile(f.metricsFile); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if f.failOnIssues && len(res.Diagnostics) > 0 {
		return errIssuesFound
	}
	return nil
}

// render formats res. Text output is colored only on a terminal.
func (a *app) render(ctx context.Context, res *sink.Result, format sink.Format, out config.OutputConfig) ([]byte, error) {
	opts := sink.Options{
		ToolVersion: version,
		Color:       format == sink.FormatText && out.Path == "" && isTerminal(a.stdout),
	}
	if out.Outline {
		opts.Outline = outline.NewCache()
	}
	var buf bytes.Buffer
	if err := sink.Write(ctx, &buf, format, res, opts); err != nil {
		return nil, fmt.Errorf("render %s output: %w", format, err)
	}
	return buf.Bytes(), nil
}

func (a *app) emit(data []byte, path string) error {
	if path == "" {
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func upload(ctx context.Context, e *env, dest, credentials, name string, data []byte, format sink.Format) error {
	u, err := sink.NewUploader(ctx, dest, credentials, e.log.Slog())
	if err != nil {
		return err
	}
	defer u.Close()
	_, err = u.Upload(ctx, name, data, format.ContentType())
	return err
}
