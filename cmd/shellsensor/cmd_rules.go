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
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/shellsensor/services/shellcheck/plugin"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/sensor"
)

func newRulesCmd(a *app) *cobra.Command {
	var asJSON, properties bool
	cmd := &cobra.Command{
		Use:   "rules [project-root]",
		Short: "List the rule catalog and the active profile",
		Long: `Lists every ShellCheck rule known to shellsensor and whether the
project's profile activates it. With --properties, lists the settings and
extensions shellsensor registers instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(projectRoot(args))
			if err != nil {
				return err
			}
			catalog, err := rules.DefaultCatalog()
			if err != nil {
				return err
			}
			if properties {
				return a.printExtensions(catalog, asJSON)
			}
			profile, err := rules.DefaultProfile(catalog).Narrow(cfg.Rules.Enabled, cfg.Rules.Disabled)
			if err != nil {
				return err
			}
			return a.printRules(catalog, profile, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&properties, "properties", false, "List settings and extensions")
	return cmd
}

type ruleRow struct {
	rules.Rule
	Active bool `json:"active"`
}

func (a *app) printRules(c *rules.Catalog, p *rules.Profile, asJSON bool) error {
	rows := make([]ruleRow, 0, c.Len())
	for _, r := range c.Rules() {
		_, active := p.Find(rules.RuleKey{Repository: c.RepositoryKey(), Rule: r.Key})
		rows = append(rows, ruleRow{Rule: r, Active: active})
	}

	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"repository": c.RepositoryKey(),
			"profile":    p.Name(),
			"rules":      rows,
		})
	}

	t := newTable("RULE", "SEVERITY", "TYPE", "ACTIVE", "NAME")
	for _, r := range rows {
		active := "no"
		if r.Active {
			active = "yes"
		}
		t.Row(r.InternalKey, r.Severity, r.Type, active, strings.TrimPrefix(r.Name, r.InternalKey+" - "))
	}
	_, err := fmt.Fprintf(a.stdout, "%s\nprofile %q: %d of %d rules active (repository %s)\n",
		t.String(), p.Name(), p.Len(), c.Len(), c.RepositoryKey())
	return err
}

func (a *app) printExtensions(c *rules.Catalog, asJSON bool) error {
	exts := plugin.Extensions(c, sensor.New())
	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"language":   plugin.Shell(),
			"properties": plugin.Properties(),
			"extensions": exts,
		})
	}

	props := newTable("KEY", "DEFAULT", "TYPE", "DESCRIPTION")
	for _, p := range plugin.Properties() {
		props.Row(p.Key, p.Default, p.Type, p.Description)
	}
	list := newTable("KIND", "KEY", "DETAIL")
	for _, e := range exts {
		list.Row(string(e.Kind), e.Key, e.Detail)
	}
	_, err := fmt.Fprintf(a.stdout, "%s\n%s\n", props.String(), list.String())
	return err
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
