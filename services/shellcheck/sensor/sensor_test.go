// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sensor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/pkg/logging"
	"github.com/AleutianAI/shellsensor/pkg/process"
	"github.com/AleutianAI/shellsensor/services/shellcheck/ledger"
	"github.com/AleutianAI/shellsensor/services/shellcheck/report"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type recordingSink struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
	errors      []string
}

func (s *recordingSink) Save(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, d)
}

func (s *recordingSink) AnalysisError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
}

type staticRules map[rules.RuleKey]rules.ActiveRule

func (r staticRules) Find(k rules.RuleKey) (rules.ActiveRule, bool) {
	ar, ok := r[k]
	return ar, ok
}

func activeSet(ids ...string) staticRules {
	out := staticRules{}
	for _, id := range ids {
		k := rules.NewRuleKey(id)
		out[k] = rules.ActiveRule{Key: k, Severity: "MAJOR"}
	}
	return out
}

type fixture struct {
	root    string
	project *source.Project
	sink    *recordingSink
	logs    *logging.Recorder
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	p, err := source.NewProject(root)
	require.NoError(t, err)
	return &fixture{root: p.BaseDir(), project: p, sink: &recordingSink{}, logs: logging.NewRecorder()}
}

func (f *fixture) context(settings config.Settings, active rules.ActiveRules) Context {
	return Context{FS: f.project, Config: settings, ActiveRules: active, Sink: f.sink}
}

func checkstyle(t *testing.T, files ...report.FileReport) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, report.Encode(&buf, &report.Report{Version: "4.3", Files: files}))
	return buf.String()
}

func scenarioReport(t *testing.T) string {
	return checkstyle(t, report.FileReport{Name: "a.sh", Issues: []report.Issue{
		{Line: 4, Column: 6, Severity: "info", Message: "Double quote to prevent globbing", Source: "SC2086"},
	}})
}

const fiveLines = "#!/bin/bash\n\nx=1\necho $x\n"

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestExecute_ScenarioA_PublishesDiagnostic(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "external-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	s := New(WithLogger(f.logs.Logger()))
	sum, err := s.Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)

	require.Len(t, f.sink.diagnostics, 1)
	d := f.sink.diagnostics[0]
	assert.Equal(t, "a.sh", d.File.RelPath)
	assert.Equal(t, 4, d.Line)
	assert.Equal(t, "Double quote to prevent globbing", d.Message)
	assert.Equal(t, "shell-rules:SC2086", d.RuleKey.String())
	assert.Equal(t, "MAJOR", d.Severity)
	assert.Equal(t, "info", d.LinterSeverity)

	assert.Equal(t, 1, sum.Published)
	assert.Empty(t, f.sink.errors)
	assert.NotEmpty(t, sum.RunID)
	require.Len(t, sum.Artifacts, 1)
	assert.Equal(t, StatusIngested, sum.Artifacts[0].Status)
}

func TestExecute_ScenarioB_UnresolvedFile(t *testing.T) {
	f := newFixture(t, map[string]string{"other.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	sum, err := New(WithLogger(f.logs.Logger())).Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)

	assert.Empty(t, f.sink.diagnostics)
	errs := f.logs.Filter(slog.LevelError, "was not found")
	require.Len(t, errs, 1)
	assert.Equal(t, "The source file 'a.sh' was not found.", errs[0].Message)
	assert.Equal(t, []string{"a.sh"}, sum.Unresolved)
	assert.Equal(t, 1, sum.Dropped)
}

func TestExecute_ScenarioC_DeactivatedRule(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	sum, err := New(WithLogger(f.logs.Logger())).Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2046")))
	require.NoError(t, err)

	assert.Empty(t, f.sink.diagnostics)
	assert.Len(t, f.logs.Filter(slog.LevelInfo, "deactivated in current analysis"), 1)
	assert.Empty(t, f.logs.Filter(slog.LevelError, ""))
	assert.Empty(t, f.sink.errors)
	assert.Equal(t, 1, sum.Deactivated)
}

func TestExecute_ScenarioD_AutolaunchPerDialect(t *testing.T) {
	f := newFixture(t, map[string]string{
		"build":  "#!/bin/bash\necho $1\n",
		"legacy": "#!/bin/ksh\nprint hi\n",
		"README": "not a script\n",
	})

	var mu sync.Mutex
	var dialects []string
	runner := &process.MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) (process.Result, error) {
			dialect := strings.TrimPrefix(args[len(args)-3], "--shell=")
			mu.Lock()
			dialects = append(dialects, dialect)
			mu.Unlock()

			var buf bytes.Buffer
			_ = report.Encode(&buf, &report.Report{Files: []report.FileReport{{
				Name:   args[0],
				Issues: []report.Issue{{Line: 2, Source: "SC2086", Message: "from " + dialect}},
			}}})
			return process.Result{ExitCode: 1, Stdout: buf.Bytes()}, nil
		},
	}

	settings := config.Settings{config.KeyAutolaunch: "true"}
	sum, err := New(WithRunner(runner), WithLogger(f.logs.Logger())).Execute(context.Background(), f.context(settings, activeSet("SC2086")))
	require.NoError(t, err)

	assert.Len(t, runner.Recorded(), 2, "one invocation per dialect with scripts")
	assert.ElementsMatch(t, []string{"bash", "ksh"}, dialects)

	for _, name := range []string{"bash-shellcheck-report.xml", "ksh-shellcheck-report.xml"} {
		_, err := os.Stat(filepath.Join(f.root, name))
		assert.NoError(t, err, name)
	}
	for _, name := range []string{"sh-shellcheck-report.xml", "dash-shellcheck-report.xml"} {
		_, err := os.Stat(filepath.Join(f.root, name))
		assert.True(t, os.IsNotExist(err), name)
	}

	require.NotNil(t, sum.Invocation)
	assert.Len(t, sum.Invocation.Artifacts(), 2)
	assert.Equal(t, 2, sum.Published)
	require.Len(t, f.sink.diagnostics, 2)

	files := []string{f.sink.diagnostics[0].File.RelPath, f.sink.diagnostics[1].File.RelPath}
	assert.ElementsMatch(t, []string{"build", "legacy"}, files, "absolute report paths resolve")
}

// =============================================================================
// DISCOVERY
// =============================================================================

func TestExecute_CustomPatternPlusDefaultUnderAutolaunch(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": "#!/bin/sh\necho\necho\necho\n"})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "ci-report.xml"), []byte(scenarioReport(t)), 0o644))

	runner := &process.MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) (process.Result, error) {
			return process.Result{ExitCode: 1, Stdout: []byte(checkstyle(t, report.FileReport{Name: "a.sh", Issues: []report.Issue{{Line: 1, Source: "SC2148"}}}))}, nil
		},
	}
	settings := config.Settings{
		config.KeyAutolaunch:   "true",
		config.KeyReportsRegex: `ci-report\.xml`,
	}
	sum, err := New(WithRunner(runner), WithLogger(logging.Discard())).Execute(context.Background(), f.context(settings, activeSet("SC2086", "SC2148")))
	require.NoError(t, err)

	var ingested []string
	for _, a := range sum.Artifacts {
		if a.Status == StatusIngested {
			ingested = append(ingested, filepath.Base(a.Path))
		}
	}
	assert.ElementsMatch(t, []string{"ci-report.xml", "sh-shellcheck-report.xml"}, ingested)
	assert.Equal(t, 2, sum.Published)
}

func TestExecute_PatternMatchesWholeName(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "bash-shellcheck-report.xml.bak"), []byte(scenarioReport(t)), 0o644))

	sum, err := New(WithLogger(logging.Discard())).Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)
	assert.Empty(t, sum.Artifacts)
	assert.Empty(t, f.sink.diagnostics)
}

func TestExecute_DuplicateContentIngestedOnce(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	content := []byte(scenarioReport(t))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a-shellcheck-report.xml"), content, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "b-shellcheck-report.xml"), content, 0o644))

	sum, err := New(WithLogger(logging.Discard())).Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)

	assert.Len(t, f.sink.diagnostics, 1)
	statuses := map[ArtifactStatus]int{}
	for _, a := range sum.Artifacts {
		statuses[a.Status]++
	}
	assert.Equal(t, map[ArtifactStatus]int{StatusIngested: 1, StatusDuplicate: 1}, statuses)
}

func TestExecute_StaleDefaultArtifactSkippedUnderAutolaunch(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "dash-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	runner := &process.MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) (process.Result, error) {
			return process.Result{Stdout: []byte(checkstyle(t))}, nil
		},
	}
	settings := config.Settings{config.KeyAutolaunch: "true"}
	sum, err := New(WithRunner(runner), WithLogger(f.logs.Logger())).Execute(context.Background(), f.context(settings, activeSet("SC2086")))
	require.NoError(t, err)

	assert.Empty(t, f.sink.diagnostics, "the stale dash report is not ingested")
	assert.Len(t, f.logs.Filter(slog.LevelWarn, "stale report artifact"), 1)

	statuses := map[string]ArtifactStatus{}
	for _, a := range sum.Artifacts {
		statuses[filepath.Base(a.Path)] = a.Status
	}
	assert.Equal(t, StatusStale, statuses["dash-shellcheck-report.xml"])
	assert.Equal(t, StatusIngested, statuses["bash-shellcheck-report.xml"])
}

func TestExecute_StaleDefaultArtifactIngestedWithoutAutolaunch(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "dash-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	_, err := New(WithLogger(logging.Discard())).Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)
	assert.Len(t, f.sink.diagnostics, 1)
}

func TestExecute_InvalidPatternFallsBackToDefault(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	settings := config.Settings{config.KeyReportsRegex: "(["}
	sum, err := New(WithLogger(logging.Discard())).Execute(context.Background(), f.context(settings, activeSet("SC2086")))
	require.NoError(t, err)
	assert.Len(t, f.sink.diagnostics, 1)
	require.Len(t, sum.AnalysisErrors, 1)
	assert.Contains(t, sum.AnalysisErrors[0], config.KeyReportsRegex)
}

// =============================================================================
// ERROR ISOLATION
// =============================================================================

func TestExecute_MalformedArtifactDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a-shellcheck-report.xml"), []byte("<checkstyle><file name='a.sh'><error line='zero' source='SC2086'/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "b-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	sum, err := New(WithLogger(f.logs.Logger())).Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)

	assert.Len(t, f.sink.diagnostics, 1)
	require.Len(t, f.sink.errors, 1)
	assert.Contains(t, f.sink.errors[0], "malformed checkstyle report")
	assert.Equal(t, StatusFailed, sum.Artifacts[0].Status)
	assert.Equal(t, StatusIngested, sum.Artifacts[1].Status)
}

func TestExecute_FailedDialectReportedAsAnalysisError(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": "#!/bin/sh\n", "b.sh": "#!/bin/bash\n"})
	runner := &process.MockRunner{
		RunFunc: func(ctx context.Context, name string, args ...string) (process.Result, error) {
			if args[len(args)-3] == "--shell=sh" {
				return process.Result{ExitCode: 4, Stderr: []byte("crash")}, nil
			}
			return process.Result{Stdout: []byte(checkstyle(t))}, nil
		},
	}
	settings := config.Settings{config.KeyAutolaunch: "true"}
	sum, err := New(WithRunner(runner), WithLogger(logging.Discard())).Execute(context.Background(), f.context(settings, activeSet()))
	require.NoError(t, err)

	require.Len(t, f.sink.errors, 1)
	assert.Contains(t, f.sink.errors[0], "--shell=sh")
	assert.Equal(t, f.sink.errors, sum.AnalysisErrors)
	_, statErr := os.Stat(filepath.Join(f.root, "sh-shellcheck-report.xml"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_LineOutOfRange(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": "echo\n"})
	rep := checkstyle(t, report.FileReport{Name: "a.sh", Issues: []report.Issue{
		{Line: 2, Source: "SC2086"},
		{Line: 40, Source: "SC2086"},
	}})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x-shellcheck-report.xml"), []byte(rep), 0o644))

	sum, err := New(WithLogger(logging.Discard())).Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)

	assert.Len(t, f.sink.diagnostics, 1)
	assert.Equal(t, 1, sum.OutOfRange)
	require.Len(t, f.sink.errors, 1)
	assert.Contains(t, f.sink.errors[0], ErrLineOutOfRange.Error())
}

func TestExecute_InvalidTimeoutSetting(t *testing.T) {
	f := newFixture(t, nil)
	settings := config.Settings{config.KeyTimeout: "soon"}
	sum, err := New(WithLogger(logging.Discard())).Execute(context.Background(), f.context(settings, activeSet()))
	require.NoError(t, err)
	assert.Len(t, sum.AnalysisErrors, 1)
}

func TestExecute_InvalidContext(t *testing.T) {
	_, err := New().Execute(context.Background(), Context{})
	assert.True(t, errors.Is(err, ErrInvalidContext))
}

func TestExecute_CancelledContext(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := New(WithLogger(logging.Discard())).Execute(ctx, f.context(config.Settings{}, activeSet("SC2086")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, sum)
	assert.Empty(t, f.sink.diagnostics)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestExecute_LedgerSkipsIngestedArtifacts(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	l, err := ledger.Open(ledger.Config{InMemory: true})
	require.NoError(t, err)
	defer l.Close()

	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s := New(WithLedger(l, true), WithLogger(logging.Discard()), WithClock(func() time.Time { return clock }))

	first, err := s.Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Published)

	clock = clock.Add(time.Minute)
	second, err := s.Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Published)
	require.Len(t, second.Artifacts, 1)
	assert.Equal(t, StatusAlreadyIngested, second.Artifacts[0].Status)

	runs, err := l.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].ID)
	assert.Equal(t, 1, runs[1].Published)
}

func TestExecute_LedgerRecordsWithoutSkipping(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x-shellcheck-report.xml"), []byte(scenarioReport(t)), 0o644))

	l, err := ledger.Open(ledger.Config{InMemory: true})
	require.NoError(t, err)
	defer l.Close()

	s := New(WithLedger(l, false), WithLogger(logging.Discard()))
	for i := 0; i < 2; i++ {
		sum, err := s.Execute(context.Background(), f.context(config.Settings{}, activeSet("SC2086")))
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Published)
	}
	seen, err := l.Seen(f.reportDigest(t))
	require.NoError(t, err)
	assert.True(t, seen)
}

func (f *fixture) reportDigest(t *testing.T) string {
	t.Helper()
	d, err := digestFile(filepath.Join(f.root, "x-shellcheck-report.xml"))
	require.NoError(t, err)
	return d
}

func TestDescribe(t *testing.T) {
	d := New().Describe()
	assert.Equal(t, Name, d.Name)
	assert.Equal(t, []string{"shell"}, d.Languages)
}

func TestExecute_WithCatalogProfile(t *testing.T) {
	f := newFixture(t, map[string]string{"a.sh": fiveLines})
	rep := checkstyle(t, report.FileReport{Name: "a.sh", Issues: []report.Issue{
		{Line: 4, Source: "ShellCheck.SC2086", Message: "Double quote to prevent globbing and word splitting."},
		{Line: 3, Source: "ShellCheck.SC2034", Message: "x appears unused."},
	}})
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "x-shellcheck-report.xml"), []byte(rep), 0o644))

	cat, err := rules.DefaultCatalog()
	require.NoError(t, err)
	profile, err := rules.DefaultProfile(cat).Narrow(nil, []string{"SC2034"})
	require.NoError(t, err)

	sum, err := New(WithLogger(logging.Discard())).Execute(context.Background(), f.context(config.Settings{}, profile))
	require.NoError(t, err)
	require.Len(t, f.sink.diagnostics, 1)
	assert.Equal(t, "shell-rules:ShellCheck.SC2086", f.sink.diagnostics[0].RuleKey.String())
	assert.Equal(t, "MAJOR", f.sink.diagnostics[0].Severity)
	assert.Equal(t, 1, sum.Deactivated)
}
