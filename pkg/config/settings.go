// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"strconv"
	"strings"
)

// Settings is the flat key/value view the analysis pipeline reads.
//
// # Thread Safety
//
// Read-only after construction; safe for concurrent reads.
type Settings map[string]string

// Settings projects the typed configuration onto the flat keys.
func (c Config) Settings() Settings {
	s := Settings{
		KeyAutolaunch:   strconv.FormatBool(c.ShellCheck.Autolaunch),
		KeyReportsRegex: c.ShellCheck.ReportsRegex,
		KeyExecutable:   c.ShellCheck.Executable,
	}
	if c.ShellCheck.Timeout > 0 {
		s[KeyTimeout] = c.ShellCheck.Timeout.String()
	}
	return s
}

// String returns the value for key and whether it is set.
func (s Settings) String(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Bool parses the value for key. Unset or unparsable values report false.
func (s Settings) Bool(key string) (bool, bool) {
	v, ok := s[key]
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}
