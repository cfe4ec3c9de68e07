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
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/shellsensor/pkg/logging"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history [project-root]",
		Short: "Show recent runs recorded in the artifact ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(projectRoot(args))
			if err != nil {
				return err
			}
			l, err := openLedger(cfg, logging.Discard())
			if err != nil {
				return err
			}
			defer l.Close()

			runs, err := l.Runs(limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				_, err := fmt.Fprintln(a.stdout, "no runs recorded")
				return err
			}

			t := newTable("STARTED", "RUN", "ARTIFACTS", "PUBLISHED", "ERRORS", "DURATION", "ROOT")
			for _, r := range runs {
				t.Row(
					r.StartedAt.Local().Format(time.DateTime),
					r.ID,
					strconv.Itoa(r.Artifacts),
					strconv.Itoa(r.Published),
					strconv.Itoa(r.AnalysisErrors),
					r.Duration.Round(time.Millisecond).String(),
					r.Root,
				)
			}
			_, err = fmt.Fprintln(a.stdout, t.String())
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
