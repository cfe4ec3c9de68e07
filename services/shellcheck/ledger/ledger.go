// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledger persists which report artifacts were ingested and a short
// history of analysis runs in BadgerDB.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	artifactPrefix = "artifact/"
	runPrefix      = "run/"
)

// Config controls where the ledger lives.
type Config struct {
	// Path is the database directory. Required unless InMemory.
	Path string

	// InMemory keeps everything in memory; used by tests and one-shot runs.
	InMemory bool

	// Logger receives BadgerDB's internal messages. Nil disables them.
	Logger *slog.Logger
}

// ArtifactRecord describes an ingested artifact.
type ArtifactRecord struct {
	Digest     string    `json:"digest"`
	Path       string    `json:"path"`
	RunID      string    `json:"run_id"`
	IngestedAt time.Time `json:"ingested_at"`
	Issues     int       `json:"issues"`
	Published  int       `json:"published"`
}

// RunRecord summarizes one analysis run.
type RunRecord struct {
	ID             string        `json:"id"`
	Root           string        `json:"root"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Autolaunch     bool          `json:"autolaunch"`
	Artifacts      int           `json:"artifacts"`
	Published      int           `json:"published"`
	AnalysisErrors int           `json:"analysis_errors"`
}

// Ledger wraps a BadgerDB instance.
//
// # Thread Safety
//
// Safe for concurrent use.
type Ledger struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens or creates the ledger.
func Open(cfg Config) (*Ledger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent ledger")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create ledger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Seen reports whether an artifact with digest was ingested before.
func (l *Ledger) Seen(digest string) (bool, error) {
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(artifactPrefix + digest))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return true, nil
}

// Artifact returns the stored record for digest.
func (l *Ledger) Artifact(digest string) (ArtifactRecord, bool, error) {
	var rec ArtifactRecord
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(artifactPrefix + digest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ArtifactRecord{}, false, nil
	}
	if err != nil {
		return ArtifactRecord{}, false, fmt.Errorf("ledger read: %w", err)
	}
	return rec, true, nil
}

// RecordArtifact stores rec under its digest, replacing any earlier record.
func (l *Ledger) RecordArtifact(rec ArtifactRecord) error {
	if rec.Digest == "" {
		return errors.New("artifact record without digest")
	}
	return l.put(artifactPrefix+rec.Digest, rec)
}

// RecordRun appends a run to the history.
func (l *Ledger) RecordRun(rec RunRecord) error {
	if rec.ID == "" {
		return errors.New("run record without id")
	}
	return l.put(runKey(rec), rec)
}

// Runs returns up to limit runs, most recent first. limit <= 0 means all.
func (l *Ledger) Runs(limit int) ([]RunRecord, error) {
	var out []RunRecord
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(runPrefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			var rec RunRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	return out, nil
}

func (l *Ledger) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// runKey sorts chronologically: zero-padded start time, then id.
func runKey(rec RunRecord) string {
	return fmt.Sprintf("%s%020d/%s", runPrefix, rec.StartedAt.UnixNano(), rec.ID)
}
