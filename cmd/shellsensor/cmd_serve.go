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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/shellsensor/services/shellcheck/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var allowed []string
	cmd := &cobra.Command{
		Use:   "serve [project-root]",
		Short: "Serve analyses over HTTP",
		Long: `Starts an HTTP API:

  POST /v1/shellcheck/analyze   run an analysis on {"root": "..."}
  GET  /v1/shellcheck/rules     rule catalog and active profile
  GET  /v1/health               liveness
  GET  /metrics                 Prometheus metrics

Only the project root and the --allow-root directories may be analyzed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := projectRoot(args)
			e, err := a.setup(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer e.Close()

			if cmd.Flags().Changed("addr") {
				e.cfg.Server.Addr = addr
			}
			srv := server.New(e.svc, e.cfg,
				server.WithLogger(e.log.Slog()),
				server.WithAllowedRoots(append([]string{root}, allowed...)...),
				server.WithMetricsHandler(e.metrics.Handler()),
			)
			return srv.Run(cmd.Context(), e.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from configuration, 127.0.0.1:12230)")
	cmd.Flags().StringSliceVar(&allowed, "allow-root", nil, "Additional directories that may be analyzed")
	return cmd
}
