// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect identifies the interpreter a script declares in its
// shebang.
//
// Only the first non-blank line is inspected and only the literal prefix
// "#!/bin/" is recognized. "#!/usr/bin/env bash" is not detected.
package detect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ShebangPrefix is the only shebang form recognized.
const ShebangPrefix = "#!/bin/"

// ErrNotRegular is returned for directories and other non-regular files.
var ErrNotRegular = errors.New("not a regular file")

// Interpreter returns the interpreter token declared by the file at path.
//
// # Description
//
// Returns "" with a nil error when the first non-blank line is not a
// "#!/bin/" shebang, when the file has no non-blank line, or when the
// shebang names nothing. Returns "" with an error when path is not a
// regular file or cannot be read. The remainder after the prefix is
// returned verbatim, so "#!/bin/bash -e" yields "bash -e".
//
// # Thread Safety
//
// Safe for concurrent use.
func Interpreter(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", &os.PathError{Op: "detect", Path: path, Err: ErrNotRegular}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	interp, err := FromReader(f)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return interp, nil
}

// FromReader applies the shebang rule to r.
func FromReader(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) != "" {
			return fromLine(trimmed), nil
		}
		if errors.Is(err, io.EOF) {
			return "", nil
		}
	}
}

func fromLine(line string) string {
	if !strings.HasPrefix(line, ShebangPrefix) {
		return ""
	}
	return strings.TrimPrefix(line, ShebangPrefix)
}
