// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules holds the ShellCheck rule catalog, the built-in quality
// profile, and the filter that decides whether an issue's rule is active.
package rules

import (
	"fmt"
	"strings"
)

// Language is the language key shell scripts are analyzed under.
const Language = "shell"

// SourcePrefix prefixes rule ids in shellcheck's checkstyle output.
const SourcePrefix = "ShellCheck."

const repositorySuffix = "-rules"

// RepositoryKey returns the rule repository for a language: "shell-rules"
// for "shell".
func RepositoryKey(language string) string {
	return language + repositorySuffix
}

// RuleKey identifies a rule within a repository.
type RuleKey struct {
	Repository string
	Rule       string
}

// NewRuleKey scopes rule to the shell repository.
func NewRuleKey(rule string) RuleKey {
	return RuleKey{Repository: RepositoryKey(Language), Rule: rule}
}

// String renders "repository:rule".
func (k RuleKey) String() string {
	return k.Repository + ":" + k.Rule
}

// ParseRuleKey parses the String form.
func ParseRuleKey(s string) (RuleKey, error) {
	repo, rule, ok := strings.Cut(s, ":")
	if !ok || repo == "" || rule == "" {
		return RuleKey{}, fmt.Errorf("invalid rule key %q", s)
	}
	return RuleKey{Repository: repo, Rule: rule}, nil
}

// CanonicalID turns "SC2086" into "ShellCheck.SC2086". Ids that already
// carry the prefix are returned unchanged.
func CanonicalID(id string) string {
	if strings.HasPrefix(id, SourcePrefix) {
		return id
	}
	return SourcePrefix + id
}
