// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by TryAcquire when another process holds the lock.
var ErrLocked = errors.New("project is locked by another analysis")

// ProjectLock serializes analysis runs on one project directory.
//
// # Description
//
// Uses an advisory flock(2) on {LockDir}/shellsensor-{hash}.lock where hash
// is derived from the absolute project root, so two hosts (for example
// `serve` and `watch`) never write report artifacts into the same root at
// the same time. The holder's PID is written into the lock file.
//
// # Thread Safety
//
// Not safe for concurrent use. Each goroutine that needs the lock should
// create its own ProjectLock.
type ProjectLock struct {
	path string
	file *os.File
}

// NewProjectLock creates a lock for root. lockDir defaults to os.TempDir().
func NewProjectLock(root, lockDir string) (*ProjectLock, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	sum := sha256.Sum256([]byte(abs))
	name := "shellsensor-" + hex.EncodeToString(sum[:])[:16] + ".lock"
	return &ProjectLock{path: filepath.Join(lockDir, name)}, nil
}

// Path returns the lock file location.
func (l *ProjectLock) Path() string {
	return l.path
}

// TryAcquire takes the lock without blocking.
//
// # Outputs
//
//   - error: ErrLocked (wrapped with the holder PID when known) if another
//     process holds the lock, or an I/O error.
func (l *ProjectLock) TryAcquire() error {
	if l.file != nil {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		holder := readPID(f)
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if holder > 0 {
				return fmt.Errorf("%w (pid %d)", ErrLocked, holder)
			}
			return ErrLocked
		}
		return fmt.Errorf("flock %s: %w", l.path, err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}
	l.file = f
	return nil
}

// Acquire blocks until the lock is taken or ctx is done, polling every
// interval.
func (l *ProjectLock) Acquire(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	for {
		err := l.TryAcquire()
		if err == nil || !errors.Is(err, ErrLocked) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Release drops the lock. Safe to call when the lock is not held.
func (l *ProjectLock) Release() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	_ = f.Truncate(0)
	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	closeErr := f.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlocking %s: %w", l.path, unlockErr)
	}
	return closeErr
}

// IsHeld reports whether this instance holds the lock.
func (l *ProjectLock) IsHeld() bool {
	return l.file != nil
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}
