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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Element and attribute names of the checkstyle format.
const (
	elemCheckstyle = "checkstyle"
	elemFile       = "file"
	elemError      = "error"

	attrVersion  = "version"
	attrName     = "name"
	attrLine     = "line"
	attrColumn   = "column"
	attrSeverity = "severity"
	attrMessage  = "message"
	attrSource   = "source"
)

type parseState int

const (
	stateProlog parseState = iota
	stateRoot
	stateFile
	stateDone
)

// ParseFile opens and parses the artifact at path.
func ParseFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Artifact: path, Err: err}
	}
	defer f.Close()
	return parse(f, path)
}

// Parse decodes a checkstyle document.
//
// # Description
//
// Walks the token stream with a fixed element map: checkstyle → file →
// error. Unknown elements at any level are skipped. The following are
// malformed and fail the whole artifact: a root other than checkstyle, a
// file without name, an error without a positive integer line or without
// source, more than one root, and any XML syntax error. A file element
// with no errors is valid.
//
// # Outputs
//
//   - *Report: the decoded report.
//   - error: a *ParseError wrapping ErrMalformedReport.
//
// # Thread Safety
//
// Pure apart from reading r.
func Parse(r io.Reader) (*Report, error) {
	return parse(r, "")
}

func parse(r io.Reader, artifact string) (*Report, error) {
	d := xml.NewDecoder(r)
	fail := func(format string, args ...any) error {
		line, _ := d.InputPos()
		return &ParseError{
			Artifact: artifact,
			Line:     line,
			Err:      fmt.Errorf("%w: %s", ErrMalformedReport, fmt.Sprintf(format, args...)),
		}
	}

	var rep *Report
	state := stateProlog

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fail("%v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch state {
			case stateProlog:
				if t.Name.Local != elemCheckstyle {
					return nil, fail("root element is <%s>, want <%s>", t.Name.Local, elemCheckstyle)
				}
				rep = &Report{Version: attr(t, attrVersion)}
				state = stateRoot

			case stateRoot:
				if t.Name.Local != elemFile {
					if err := d.Skip(); err != nil {
						return nil, fail("%v", err)
					}
					continue
				}
				name, ok := attrOK(t, attrName)
				if !ok || name == "" {
					return nil, fail("<%s> without %s", elemFile, attrName)
				}
				rep.Files = append(rep.Files, FileReport{Name: name})
				state = stateFile

			case stateFile:
				if t.Name.Local == elemError {
					issue, msg := decodeIssue(t)
					if msg != "" {
						return nil, fail("%s", msg)
					}
					cur := &rep.Files[len(rep.Files)-1]
					cur.Issues = append(cur.Issues, issue)
				}
				if err := d.Skip(); err != nil {
					return nil, fail("%v", err)
				}

			case stateDone:
				return nil, fail("unexpected element <%s> after root", t.Name.Local)
			}

		case xml.EndElement:
			switch state {
			case stateFile:
				state = stateRoot
			case stateRoot:
				state = stateDone
			}
		}
	}

	if rep == nil {
		return nil, fail("no <%s> root element", elemCheckstyle)
	}
	if state != stateDone {
		return nil, fail("unterminated <%s>", elemCheckstyle)
	}
	return rep, nil
}

func decodeIssue(se xml.StartElement) (Issue, string) {
	rawLine, ok := attrOK(se, attrLine)
	if !ok {
		return Issue{}, fmt.Sprintf("<%s> without %s", elemError, attrLine)
	}
	line, err := strconv.Atoi(strings.TrimSpace(rawLine))
	if err != nil || line <= 0 {
		return Issue{}, fmt.Sprintf("<%s> has invalid %s %q", elemError, attrLine, rawLine)
	}

	source := attr(se, attrSource)
	if source == "" {
		return Issue{}, fmt.Sprintf("<%s> without %s", elemError, attrSource)
	}

	column, err := strconv.Atoi(strings.TrimSpace(attr(se, attrColumn)))
	if err != nil || column < 0 {
		column = 0
	}

	return Issue{
		Line:     line,
		Column:   column,
		Severity: attr(se, attrSeverity),
		Message:  attr(se, attrMessage),
		Source:   source,
	}, ""
}

func attr(se xml.StartElement, name string) string {
	v, _ := attrOK(se, name)
	return v
}

func attrOK(se xml.StartElement, name string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}
