// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sensor ingests shellcheck reports into diagnostics.
//
// A run optionally launches shellcheck for every dialect over the project
// root, discovers report artifacts in the root, parses them, resolves each
// reported path to a tracked file, drops issues whose rule is not active,
// and publishes one Diagnostic per remaining issue to the host sink.
//
// The host is reached only through the interfaces in host.go, so the same
// pipeline serves the CLI, the HTTP server and the file watcher.
//
// Failures are isolated: an unreadable script, a failed dialect, a
// malformed artifact or an unknown path is logged and reported as an
// analysis error, and the run carries on to completion.
package sensor
