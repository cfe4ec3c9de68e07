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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/services/shellcheck/invoke"
)

// ArtifactStatus is what happened to a discovered artifact.
type ArtifactStatus string

const (
	StatusIngested        ArtifactStatus = "ingested"
	StatusFailed          ArtifactStatus = "failed"
	StatusStale           ArtifactStatus = "stale"
	StatusDuplicate       ArtifactStatus = "duplicate"
	StatusAlreadyIngested ArtifactStatus = "already_ingested"
)

// Artifact is a report file selected for ingestion.
type Artifact struct {
	// Path is absolute.
	Path string

	// Name is the entry name in the project root.
	Name string

	// Digest is the hex SHA-256 of the content.
	Digest string
}

// CompilePattern anchors expr so that it must match a whole entry name.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + expr + ")$")
}

var defaultPattern = regexp.MustCompile("^(?:" + config.DefaultReportsRegex + ")$")

type discovery struct {
	root       string
	pattern    *regexp.Regexp
	autolaunch bool

	// fresh holds the artifacts written by this run's invocation.
	fresh  map[string]bool
	logger *slog.Logger
}

type discovered struct {
	artifacts []Artifact
	skipped   []ArtifactSummary
	errs      []error
}

// run lists the direct entries of the root and selects report artifacts.
//
// # Description
//
// An entry is selected when its full name matches the configured pattern,
// or, when autolaunch is on, the default pattern. Entries are visited once
// each, so a name matching both patterns is selected once. Selected
// artifacts are then de-duplicated by content digest, keeping the first in
// directory order.
//
// Under autolaunch, a default-named artifact that this run did not write
// is left over from an earlier run (for example for a dialect that no
// longer has scripts) and is skipped as stale.
func (d *discovery) run() discovered {
	var out discovered

	entries, err := os.ReadDir(d.root)
	if err != nil {
		out.errs = append(out.errs, fmt.Errorf("listing %s: %w", d.root, err))
		return out
	}

	defaultNames := make(map[string]bool, len(invoke.Dialects))
	for _, dialect := range invoke.Dialects {
		defaultNames[invoke.ArtifactName(dialect)] = true
	}

	digests := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if !d.pattern.MatchString(name) && !(d.autolaunch && defaultPattern.MatchString(name)) {
			continue
		}
		path := filepath.Join(d.root, name)

		info, err := os.Stat(path)
		if err != nil {
			out.errs = append(out.errs, fmt.Errorf("artifact %s: %w", path, err))
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		if d.autolaunch && defaultNames[name] && !d.fresh[path] {
			d.logger.Warn("ignoring stale report artifact not produced by this run", "path", path)
			out.skipped = append(out.skipped, ArtifactSummary{Path: path, Status: StatusStale})
			continue
		}

		digest, err := digestFile(path)
		if err != nil {
			out.errs = append(out.errs, fmt.Errorf("artifact %s: %w", path, err))
			continue
		}
		if first, dup := digests[digest]; dup {
			d.logger.Info("ignoring duplicate report artifact", "path", path, "duplicate_of", first)
			out.skipped = append(out.skipped, ArtifactSummary{Path: path, Digest: digest, Status: StatusDuplicate})
			continue
		}
		digests[digest] = path

		out.artifacts = append(out.artifacts, Artifact{Path: path, Name: name, Digest: digest})
	}
	return out
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
