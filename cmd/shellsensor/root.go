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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/pkg/logging"
	"github.com/AleutianAI/shellsensor/pkg/process"
	"github.com/AleutianAI/shellsensor/services/shellcheck/analysis"
	"github.com/AleutianAI/shellsensor/services/shellcheck/ledger"
	"github.com/AleutianAI/shellsensor/services/shellcheck/telemetry"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	exitOK      = 0
	exitFailure = 1
	exitIssues  = 2
)

// errIssuesFound maps to exitIssues under --fail-on-issues.
var errIssuesFound = errors.New("diagnostics found")

// =============================================================================
// APPLICATION
// =============================================================================

// app holds the persistent flags and the streams commands write to.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string

	// runner and lockDir are overridden in tests.
	runner  process.Runner
	lockDir string
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return executeApp(ctx, &app{stdout: stdout, stderr: stderr}, args)
}

func executeApp(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errIssuesFound):
		return exitIssues
	default:
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shellsensor",
		Short: "Import shellcheck findings as diagnostics",
		Long: `shellsensor discovers shellcheck checkstyle reports in a project root,
optionally runs shellcheck itself once per shell dialect, and turns the
reported issues into diagnostics on the project's tracked files.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Configuration file (default: <project-root>/"+config.FileName+")")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "",
		"Log format: auto, text, json")

	cmd.AddCommand(
		newRunCmd(a),
		newRulesCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
	)
	return cmd
}

// projectRoot returns the optional positional root, "." by default.
func projectRoot(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// env is everything a command needs for one project.
type env struct {
	root    string
	cfg     config.Config
	log     *logging.Logger
	ledger  *ledger.Ledger
	metrics *telemetry.RunMetrics
	svc     *analysis.Service

	shutdownTelemetry func(context.Context) error
}

// loadConfig reads the project configuration and applies the persistent
// flags.
func (a *app) loadConfig(root string) (config.Config, error) {
	cfg, err := config.LoadForProject(root, a.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	return cfg, cfg.Validate()
}

// setup loads configuration and builds the logger, telemetry, ledger and
// analysis service. The caller must Close the env.
func (a *app) setup(ctx context.Context, root string) (*env, error) {
	cfg, err := a.loadConfig(root)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	e := &env{root: root, cfg: cfg}
	e.log = logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(cfg.Log.Format),
		Output:  a.stderr,
		LogDir:  cfg.Log.Dir,
		Service: "shellsensor",
	})
	logger := e.log.Slog()

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.TraceExporter = cfg.Telemetry.Traces
	tcfg.MetricExporter = cfg.Telemetry.Metrics
	if cfg.Telemetry.Endpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.Endpoint
	}
	if e.shutdownTelemetry, err = telemetry.Init(ctx, tcfg); err != nil {
		e.Close()
		return nil, err
	}

	e.metrics = telemetry.NewRunMetrics()
	opts := []analysis.Option{
		analysis.WithLogger(logger),
		analysis.WithMetrics(e.metrics),
		analysis.WithLockDir(a.lockDir),
	}
	if a.runner != nil {
		opts = append(opts, analysis.WithRunner(a.runner))
	}
	if cfg.Ledger.Enabled {
		if e.ledger, err = openLedger(cfg, logger); err != nil {
			e.Close()
			return nil, err
		}
		opts = append(opts, analysis.WithLedger(e.ledger))
	}

	if e.svc, err = analysis.New(opts...); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the ledger, flushes telemetry and closes the log file.
func (e *env) Close() {
	if e.ledger != nil {
		if err := e.ledger.Close(); err != nil {
			e.log.Slog().Warn("failed to close ledger", "error", err)
		}
	}
	if e.shutdownTelemetry != nil {
		if err := e.shutdownTelemetry(context.Background()); err != nil {
			e.log.Slog().Warn("telemetry shutdown failed", "error", err)
		}
	}
	_ = e.log.Close()
}

func openLedger(cfg config.Config, logger *slog.Logger) (*ledger.Ledger, error) {
	return ledger.Open(ledger.Config{
		Path:   logging.ExpandPath(cfg.Ledger.Path),
		Logger: logger.With("component", "ledger"),
	})
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
