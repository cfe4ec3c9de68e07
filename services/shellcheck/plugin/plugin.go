// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plugin describes what shellsensor contributes to an analysis
// host: the shell language, the rules repository, the built-in profile,
// the sensor and the settings it reads.
package plugin

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/services/shellcheck/invoke"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/sensor"
)

// Category groups the properties in listings.
const Category = "ShellCheck"

// Kind classifies an extension.
type Kind string

const (
	KindLanguage        Kind = "language"
	KindProfile         Kind = "profile"
	KindRulesRepository Kind = "rules_repository"
	KindProperty        Kind = "property"
	KindSensor          Kind = "sensor"
)

// Language is the shell language declaration.
type Language struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Suffixes []string `json:"suffixes"`
}

// Shell returns the language shellsensor analyzes. Its suffixes are the
// dialect names.
func Shell() Language {
	return Language{
		Key:      rules.Language,
		Name:     "Shells (Bourne, Bourne-Again, Korn, Debian Almquist)",
		Suffixes: append([]string(nil), invoke.Dialects...),
	}
}

// Property documents one configuration key.
type Property struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     string `json:"default"`
	Type        string `json:"type"`
	Category    string `json:"category"`
}

// Properties lists the settings the sensor reads.
func Properties() []Property {
	return []Property{
		{
			Key:         config.KeyAutolaunch,
			Name:        "Autolaunch ShellCheck",
			Description: "Run shellcheck on detected scripts before reading reports.",
			Default:     "false",
			Type:        "BOOLEAN",
			Category:    Category,
		},
		{
			Key:         config.KeyExecutable,
			Name:        "ShellCheck executable",
			Description: "Name or path of the shellcheck binary used by autolaunch.",
			Default:     invoke.DefaultExecutable,
			Type:        "STRING",
			Category:    Category,
		},
		{
			Key:         config.KeyTimeout,
			Name:        "ShellCheck timeout",
			Description: "Per-dialect limit on a shellcheck invocation. Empty means no limit.",
			Default:     "",
			Type:        "DURATION",
			Category:    Category,
		},
		{
			Key:         config.KeyReportsRegex,
			Name:        "Report files regex",
			Description: "Regular expression matched against file names in the project root to find checkstyle reports.",
			Default:     config.DefaultReportsRegex,
			Type:        "REGULAR_EXPRESSION",
			Category:    Category,
		},
	}
}

// Extension is one entry of the descriptor list.
type Extension struct {
	Kind   Kind   `json:"kind"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// Extensions returns the fixed list a host registers, in registration
// order: language, profile, properties, rules repository, sensor.
func Extensions(c *rules.Catalog, s *sensor.Sensor) []Extension {
	lang := Shell()
	exts := []Extension{
		{Kind: KindLanguage, Key: lang.Key, Name: lang.Name, Detail: strings.Join(lang.Suffixes, ",")},
		{Kind: KindProfile, Key: rules.DefaultProfileName, Name: rules.DefaultProfileName, Detail: fmt.Sprintf("%d rules", c.Len())},
	}
	for _, p := range Properties() {
		exts = append(exts, Extension{Kind: KindProperty, Key: p.Key, Name: p.Name, Detail: p.Default})
	}
	repo := c.Repository()
	exts = append(exts, Extension{Kind: KindRulesRepository, Key: c.RepositoryKey(), Name: repo.Name, Detail: repo.Language})

	d := s.Describe()
	exts = append(exts, Extension{Kind: KindSensor, Key: d.Name, Name: d.Name, Detail: strings.Join(d.Languages, ",")})
	return exts
}
