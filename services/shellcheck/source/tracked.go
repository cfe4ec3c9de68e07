// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source maps paths emitted by the linter onto tracked project
// files.
package source

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// TrackedFile is a project file diagnostics can be attached to.
//
// # Thread Safety
//
// Safe for concurrent use; the line count is computed once on demand.
type TrackedFile struct {
	// RelPath is slash-separated and relative to the project base dir.
	RelPath string

	// AbsPath is the cleaned absolute path.
	AbsPath string

	linesOnce sync.Once
	lines     int
	linesErr  error
}

// NewTrackedFile creates a TrackedFile for rel under base.
func NewTrackedFile(base, rel string) *TrackedFile {
	return &TrackedFile{
		RelPath: filepath.ToSlash(filepath.Clean(rel)),
		AbsPath: filepath.Clean(filepath.Join(base, rel)),
	}
}

func (f *TrackedFile) String() string {
	return f.RelPath
}

// Lines returns the number of lines: newline count plus one, so a file
// ending in a newline has an empty last line.
func (f *TrackedFile) Lines() (int, error) {
	f.linesOnce.Do(func() {
		fh, err := os.Open(f.AbsPath)
		if err != nil {
			f.linesErr = err
			return
		}
		defer fh.Close()
		f.lines, f.linesErr = countLines(fh)
	})
	return f.lines, f.linesErr
}

// ReadContent returns the whole file.
func (f *TrackedFile) ReadContent() ([]byte, error) {
	return os.ReadFile(f.AbsPath)
}

func countLines(r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 32*1024)
	n := 1
	for {
		c, err := br.Read(buf)
		n += bytes.Count(buf[:c], []byte{'\n'})
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
	}
}
