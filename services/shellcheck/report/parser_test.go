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
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile_Fixture(t *testing.T) {
	rep, err := ParseFile(filepath.Join("testdata", "bash-shellcheck-report.xml"))
	require.NoError(t, err)

	assert.Equal(t, "4.3", rep.Version)
	require.Len(t, rep.Files, 3)
	assert.Equal(t, "deploy.sh", rep.Files[0].Name)
	assert.Equal(t, "/abs/path/build.sh", rep.Files[1].Name)
	assert.Empty(t, rep.Files[2].Issues, "a file without errors is valid")
	assert.Equal(t, 3, rep.IssueCount())

	first := rep.Files[0].Issues[0]
	assert.Equal(t, 5, first.Line)
	assert.Equal(t, 6, first.Column)
	assert.Equal(t, "warning", first.Severity)
	assert.Equal(t, "ShellCheck.SC2046", first.Source)

	assert.Equal(t, "Couldn't parse this function.", rep.Files[1].Issues[0].Message)
}

func TestParse_UnknownElementsSkipped(t *testing.T) {
	doc := `<checkstyle version="4.3">
  <meta><x/></meta>
  <file name="a.sh">
    <note>ignored</note>
    <error line="1" source="SC2148" message="m"><detail/></error>
  </file>
</checkstyle>`
	rep, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rep.Files, 1)
	require.Len(t, rep.Files[0].Issues, 1)
	assert.Equal(t, 0, rep.Files[0].Issues[0].Column, "missing column is 0")
}

func TestParse_EmptyCheckstyle(t *testing.T) {
	rep, err := Parse(strings.NewReader(`<?xml version="1.0" encoding="UTF-8"?><checkstyle version="4.3"></checkstyle>`))
	require.NoError(t, err)
	assert.Empty(t, rep.Files)
	assert.Equal(t, 0, rep.IssueCount())
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty input", ""},
		{"wrong root", `<pmd><file name="a"/></pmd>`},
		{"file without name", `<checkstyle><file><error line="1" source="SC1"/></file></checkstyle>`},
		{"missing line", `<checkstyle><file name="a"><error source="SC1"/></file></checkstyle>`},
		{"zero line", `<checkstyle><file name="a"><error line="0" source="SC1"/></file></checkstyle>`},
		{"negative line", `<checkstyle><file name="a"><error line="-4" source="SC1"/></file></checkstyle>`},
		{"non-numeric line", `<checkstyle><file name="a"><error line="x" source="SC1"/></file></checkstyle>`},
		{"missing source", `<checkstyle><file name="a"><error line="1"/></file></checkstyle>`},
		{"truncated", `<checkstyle><file name="a"><error line="1" source="SC1"/>`},
		{"syntax error", `<checkstyle><file name="a"></checkstyle>`},
		{"second root", `<checkstyle></checkstyle><checkstyle></checkstyle>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Nil(t, rep)
			assert.True(t, errors.Is(err, ErrMalformedReport), "got %v", err)

			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "none.xml"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Error(), "none.xml")
}

func TestParseError_Message(t *testing.T) {
	_, err := Parse(strings.NewReader("<checkstyle>\n<file name=\"a\">\n<error line=\"x\" source=\"SC1\"/>\n</file></checkstyle>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<input>:3:")
}

func TestEncode_ReparsesToSameReport(t *testing.T) {
	want := &Report{
		Version: "4.3",
		Files: []FileReport{
			{Name: "a.sh", Issues: []Issue{
				{Line: 3, Column: 7, Severity: "warning", Message: "Quote <this> & \"that\"", Source: "SC2086"},
				{Line: 10, Column: 1, Severity: "style", Message: "Use $(...)", Source: "SC2006"},
			}},
			{Name: "/tmp/b.sh"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, want))

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReport_FileNames(t *testing.T) {
	rep := &Report{Files: []FileReport{{Name: "a.sh"}, {Name: "b.sh"}, {Name: "a.sh"}}}
	assert.Equal(t, []string{"a.sh", "b.sh"}, rep.FileNames())
}

func TestEncode_IssueCountPreserved(t *testing.T) {
	for n := 0; n <= 25; n++ {
		rep := &Report{Version: "4.3"}
		for i := 0; i < n; i++ {
			if i%4 == 0 {
				rep.Files = append(rep.Files, FileReport{Name: fmt.Sprintf("s%d.sh", i)})
			}
			last := &rep.Files[len(rep.Files)-1]
			last.Issues = append(last.Issues, Issue{Line: i + 1, Source: "SC2086", Message: "m"})
		}

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, rep))
		got, err := Parse(&buf)
		require.NoError(t, err)
		assert.Equal(t, n, got.IssueCount(), "n=%d", n)
	}
}
