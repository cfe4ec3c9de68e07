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

import "errors"

var (
	// ErrInvalidContext is returned when a required host collaborator is nil.
	ErrInvalidContext = errors.New("invalid sensor context")

	// ErrLineOutOfRange marks issues reported past the end of their file.
	ErrLineOutOfRange = errors.New("issue line out of range")
)
