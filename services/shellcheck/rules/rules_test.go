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
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/AleutianAI/shellsensor/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryKey(t *testing.T) {
	assert.Equal(t, "shell-rules", RepositoryKey(Language))
	assert.Equal(t, "shell-rules:ShellCheck.SC2086", NewRuleKey("ShellCheck.SC2086").String())
}

func TestParseRuleKey(t *testing.T) {
	k, err := ParseRuleKey("shell-rules:ShellCheck.SC2086")
	require.NoError(t, err)
	assert.Equal(t, RuleKey{Repository: "shell-rules", Rule: "ShellCheck.SC2086"}, k)

	for _, bad := range []string{"", "shell-rules", ":SC1", "shell-rules:"} {
		_, err := ParseRuleKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "ShellCheck.SC2086", CanonicalID("SC2086"))
	assert.Equal(t, "ShellCheck.SC2086", CanonicalID("ShellCheck.SC2086"))
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Equal(t, 39, c.Len())
	assert.Equal(t, "shell", c.Repository().Language)
	assert.Equal(t, "ShellCheck", c.Repository().Name)
	assert.Equal(t, "shell-rules", c.RepositoryKey())

	r, ok := c.Get("SC2086")
	require.True(t, ok)
	assert.Equal(t, "ShellCheck.SC2086", r.Key)
	assert.Equal(t, "SC2086", r.InternalKey)
	assert.Equal(t, "MAJOR", r.Severity)
	assert.Equal(t, "BUG", r.Type)

	_, ok = c.Get("SC9999")
	assert.False(t, ok)

	again, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "repository: {language: shell, name: X}\nrules:\n  - key: a\n    internal_key: a\n    name: a\n    severity: MAJOR\n    type: BUG\n    status: READY\n    cardinality: SINGLE\n    colour: red\n"},
		{"bad severity", "repository: {language: shell, name: X}\nrules:\n  - key: a\n    internal_key: a\n    name: a\n    severity: HUGE\n    type: BUG\n    status: READY\n    cardinality: SINGLE\n"},
		{"duplicate", "repository: {language: shell, name: X}\nrules:\n  - {key: a, internal_key: a, name: a, severity: MAJOR, type: BUG, status: READY, cardinality: SINGLE}\n  - {key: a, internal_key: a, name: a, severity: MAJOR, type: BUG, status: READY, cardinality: SINGLE}\n"},
		{"no rules", "repository: {language: shell, name: X}\nrules: []\n"},
		{"no repository", "rules:\n  - {key: a, internal_key: a, name: a, severity: MAJOR, type: BUG, status: READY, cardinality: SINGLE}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCatalog), "got %v", err)
		})
	}
}

func TestDefaultProfile_ActivatesEveryRule(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	p := DefaultProfile(c)

	assert.Equal(t, DefaultProfileName, p.Name())
	assert.Equal(t, c.Len(), p.Len())
	for _, r := range c.Rules() {
		ar, ok := p.Find(NewRuleKey(r.Key))
		require.True(t, ok, r.Key)
		assert.Equal(t, r.Severity, ar.Severity)
	}
	_, ok := p.Find(NewRuleKey("ShellCheck.SC9999"))
	assert.False(t, ok)
	_, ok = p.Find(RuleKey{Repository: "other-rules", Rule: "ShellCheck.SC2086"})
	assert.False(t, ok)
}

func TestProfile_Narrow(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	base := DefaultProfile(c)

	t.Run("disabled", func(t *testing.T) {
		p, err := base.Narrow(nil, []string{"SC2086", "ShellCheck.SC2034"})
		require.NoError(t, err)
		assert.Equal(t, base.Len()-2, p.Len())
		_, ok := p.Find(NewRuleKey("ShellCheck.SC2086"))
		assert.False(t, ok)
		_, ok = base.Find(NewRuleKey("ShellCheck.SC2086"))
		assert.True(t, ok, "the base profile is not modified")
	})

	t.Run("enabled then disabled", func(t *testing.T) {
		p, err := base.Narrow([]string{"SC2086", "SC2046"}, []string{"SC2046"})
		require.NoError(t, err)
		require.Equal(t, 1, p.Len())
		assert.Equal(t, "ShellCheck.SC2086", p.Active()[0].Key.Rule)
	})

	t.Run("unknown rule", func(t *testing.T) {
		_, err := base.Narrow(nil, []string{"SC9999"})
		assert.True(t, errors.Is(err, ErrUnknownRule))
	})
}

func TestFilter(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	p, err := DefaultProfile(c).Narrow(nil, []string{"SC2034"})
	require.NoError(t, err)

	rec := logging.NewRecorder()
	f := NewFilter(p, rec.Logger())

	assert.True(t, f.Accept("ShellCheck.SC2086"))
	assert.False(t, f.Accept("ShellCheck.SC2034"))
	assert.False(t, f.Accept("ShellCheck.SC9999"))

	infos := rec.Filter(slog.LevelInfo, "deactivated in current analysis")
	require.Len(t, infos, 2)
	assert.Equal(t,
		"An issue for rule 'ShellCheck.SC2034' was detected by ShellCheck but this rule is deactivated in current analysis.",
		infos[0].Message)
	assert.Empty(t, rec.Filter(slog.LevelError, ""), "deactivation is not an error")

	// IsActive is repeatable and silent.
	before := len(rec.Entries())
	for i := 0; i < 3; i++ {
		assert.False(t, f.IsActive("ShellCheck.SC2034"))
	}
	assert.Len(t, rec.Entries(), before)
	assert.Equal(t, NewRuleKey("ShellCheck.SC2086"), f.Key("ShellCheck.SC2086"))
}
