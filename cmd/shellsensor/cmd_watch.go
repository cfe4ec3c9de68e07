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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/shellsensor/services/shellcheck/sink"
	"github.com/AleutianAI/shellsensor/services/shellcheck/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "watch [project-root]",
		Short: "Re-run the analysis when project files change",
		Long: `Runs one analysis, then watches the project root and runs again after
scripts or report files change. Changes made while an analysis is running
are ignored, including the reports autolaunch writes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd, projectRoot(args), f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.autolaunch, "autolaunch", false, "Run shellcheck before reading reports")
	fl.StringVar(&f.reportsRegex, "reports-regex", "", "Regex selecting report files in the project root")
	fl.StringVarP(&f.format, "format", "f", "", "Output format: sarif, json, text")
	return cmd
}

func (a *app) watch(cmd *cobra.Command, root string, f *runFlags) error {
	ctx := cmd.Context()
	e, err := a.setup(ctx, root)
	if err != nil {
		return err
	}
	defer e.Close()
	logger := e.log.Slog()

	cfg := e.cfg
	applyRunFlags(cmd, f, &cfg)
	format, err := sink.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	analyze := func(ctx context.Context) {
		res, err := e.svc.Analyze(ctx, root, cfg)
		if res == nil {
			logger.Error("analysis failed", "error", err)
			return
		}
		data, err := a.render(ctx, res, format, cfg.Output)
		if err != nil {
			logger.Error("render failed", "error", err)
			return
		}
		if err := a.emit(data, cfg.Output.Path); err != nil {
			logger.Error("write failed", "error", err)
		}
	}

	exclude := append([]string(nil), cfg.Sources.Exclude...)
	if cfg.ShellCheck.Autolaunch {
		exclude = append(exclude, "*-shellcheck-report.xml")
	}
	w, err := watch.New(root, func(ctx context.Context, changed []string) {
		logger.Debug("changed files", "paths", changed)
		analyze(ctx)
	},
		watch.WithDebounce(cfg.Watch.Debounce),
		watch.WithExclude(exclude...),
		watch.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	analyze(ctx)
	logger.Info("watching for changes", "root", root)
	return w.Run(ctx)
}
