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
	"io"
	"strconv"
)

// DefaultVersion is written when a Report has no version.
const DefaultVersion = "4.3"

// Encode writes r in the checkstyle format shellcheck emits.
func Encode(w io.Writer, r *Report) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	version := r.Version
	if version == "" {
		version = DefaultVersion
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: elemCheckstyle},
		Attr: []xml.Attr{{Name: xml.Name{Local: attrVersion}, Value: version}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	for _, f := range r.Files {
		fe := xml.StartElement{
			Name: xml.Name{Local: elemFile},
			Attr: []xml.Attr{{Name: xml.Name{Local: attrName}, Value: f.Name}},
		}
		if err := enc.EncodeToken(fe); err != nil {
			return err
		}
		for _, is := range f.Issues {
			ee := xml.StartElement{
				Name: xml.Name{Local: elemError},
				Attr: []xml.Attr{
					{Name: xml.Name{Local: attrLine}, Value: strconv.Itoa(is.Line)},
					{Name: xml.Name{Local: attrColumn}, Value: strconv.Itoa(is.Column)},
					{Name: xml.Name{Local: attrSeverity}, Value: is.Severity},
					{Name: xml.Name{Local: attrMessage}, Value: is.Message},
					{Name: xml.Name{Local: attrSource}, Value: is.Source},
				},
			}
			if err := enc.EncodeToken(ee); err != nil {
				return err
			}
			if err := enc.EncodeToken(ee.End()); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(fe.End()); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
