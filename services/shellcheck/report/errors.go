// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"errors"
	"fmt"
)

// ErrMalformedReport is wrapped by every parse failure.
var ErrMalformedReport = errors.New("malformed checkstyle report")

// ParseError locates a parse failure inside an artifact.
type ParseError struct {
	// Artifact is the file being parsed; empty for in-memory input.
	Artifact string

	// Line is the input line where decoding stopped; 0 when unknown.
	Line int

	Err error
}

func (e *ParseError) Error() string {
	where := e.Artifact
	if where == "" {
		where = "<input>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", where, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
