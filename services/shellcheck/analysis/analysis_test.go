// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/pkg/logging"
	"github.com/AleutianAI/shellsensor/pkg/process"
	"github.com/AleutianAI/shellsensor/services/shellcheck/ledger"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/telemetry"
)

const report = `<?xml version="1.0" encoding="UTF-8"?>
<checkstyle version="4.3">
  <file name="deploy.sh">
    <error line="3" column="6" severity="info" message="Double quote to prevent globbing and word splitting." source="ShellCheck.SC2086"/>
    <error line="2" column="1" severity="warning" message="Use cd ... || exit in case cd fails." source="ShellCheck.SC2164"/>
  </file>
  <file name="vendor/lib.sh">
    <error line="1" column="1" severity="error" message="Couldn't parse this." source="ShellCheck.SC1073"/>
  </file>
</checkstyle>
`

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"deploy.sh":                "#!/bin/bash\ncd /srv\necho $1\n",
		"vendor/lib.sh":            "#!/bin/sh\n",
		"ci-shellcheck-report.xml": report,
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newService(t *testing.T, opts ...Option) (*Service, *logging.Recorder) {
	t.Helper()
	rec := logging.NewRecorder()
	opts = append([]Option{WithLogger(rec.Logger()), WithLockDir(t.TempDir())}, opts...)
	s, err := New(opts...)
	require.NoError(t, err)
	return s, rec
}

func TestAnalyze_PublishesAndExcludes(t *testing.T) {
	root := newProject(t)
	s, rec := newService(t)

	cfg := config.DefaultConfig()
	cfg.Sources.Exclude = append(cfg.Sources.Exclude, "vendor/**")

	res, err := s.Analyze(context.Background(), root, cfg)
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "deploy.sh", res.Diagnostics[0].File.RelPath)
	assert.Equal(t, "ShellCheck.SC2086", res.Diagnostics[0].RuleKey.Rule)
	assert.Equal(t, []string{"vendor/lib.sh"}, res.Summary.Unresolved)
	assert.Equal(t, 1, res.Summary.Dropped)
	assert.Same(t, s.Catalog(), res.Catalog)
	assert.NotEmpty(t, rec.Filter(slog.LevelError, "The source file 'vendor/lib.sh' was not found."))
}

func TestAnalyze_DisabledRule(t *testing.T) {
	root := newProject(t)
	s, _ := newService(t)

	cfg := config.DefaultConfig()
	cfg.Rules.Disabled = []string{"SC2164"}

	res, err := s.Analyze(context.Background(), root, cfg)
	require.NoError(t, err)

	for _, d := range res.Diagnostics {
		assert.NotEqual(t, "ShellCheck.SC2164", d.RuleKey.Rule)
	}
	assert.Equal(t, 1, res.Summary.Deactivated)
}

func TestAnalyze_UnknownRule(t *testing.T) {
	s, _ := newService(t)
	cfg := config.DefaultConfig()
	cfg.Rules.Enabled = []string{"SC9999"}

	_, err := s.Analyze(context.Background(), t.TempDir(), cfg)
	assert.ErrorIs(t, err, rules.ErrUnknownRule)
}

func TestAnalyze_InvalidConfig(t *testing.T) {
	s, _ := newService(t)
	cfg := config.DefaultConfig()
	cfg.Output.Format = "xml"

	_, err := s.Analyze(context.Background(), t.TempDir(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestAnalyze_WaitsForProjectLock(t *testing.T) {
	root := newProject(t)
	lockDir := t.TempDir()
	s, _ := newService(t, WithLockDir(lockDir))

	held, err := process.NewProjectLock(root, lockDir)
	require.NoError(t, err)
	require.NoError(t, held.TryAcquire())
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Analyze(ctx, root, config.DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_AutolaunchUsesRunner(t *testing.T) {
	root := newProject(t)
	runner := &process.MockRunner{}
	s, _ := newService(t, WithRunner(runner))

	cfg := config.DefaultConfig()
	cfg.ShellCheck.Autolaunch = true

	_, err := s.Analyze(context.Background(), root, cfg)
	require.NoError(t, err)

	calls := runner.Recorded()
	require.NotEmpty(t, calls)
	assert.Equal(t, "shellcheck", calls[0].Name)
}

func TestAnalyze_LedgerAndMetrics(t *testing.T) {
	root := newProject(t)
	l, err := ledger.Open(ledger.Config{InMemory: true})
	require.NoError(t, err)
	defer l.Close()
	m := telemetry.NewRunMetrics()
	s, _ := newService(t, WithLedger(l), WithMetrics(m))

	cfg := config.DefaultConfig()
	cfg.Ledger.Enabled = true
	cfg.Ledger.SkipIngested = true

	first, err := s.Analyze(context.Background(), root, cfg)
	require.NoError(t, err)
	assert.Len(t, first.Diagnostics, 3)

	second, err := s.Analyze(context.Background(), root, cfg)
	require.NoError(t, err)
	assert.Empty(t, second.Diagnostics)

	runs, err := l.Runs(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
