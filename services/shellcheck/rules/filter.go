// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"log/slog"
)

// Filter decides whether an issue's rule is active in the current run.
//
// # Thread Safety
//
// Safe for concurrent use when the underlying ActiveRules is.
type Filter struct {
	active     ActiveRules
	repository string
	logger     *slog.Logger
}

// NewFilter scopes rule ids to the shell repository and queries active.
func NewFilter(active ActiveRules, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{
		active:     active,
		repository: RepositoryKey(Language),
		logger:     logger,
	}
}

// Key returns the repository-scoped key for a rule id.
func (f *Filter) Key(ruleID string) RuleKey {
	return RuleKey{Repository: f.repository, Rule: ruleID}
}

// IsActive reports whether ruleID is active. It does not log.
func (f *Filter) IsActive(ruleID string) bool {
	_, ok := f.active.Find(f.Key(ruleID))
	return ok
}

// Accept is IsActive plus an informational log line for rejected rules.
func (f *Filter) Accept(ruleID string) bool {
	if f.IsActive(ruleID) {
		return true
	}
	f.logger.Info(fmt.Sprintf(
		"An issue for rule '%s' was detected by ShellCheck but this rule is deactivated in current analysis.",
		ruleID), "rule", ruleID)
	return false
}
