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

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("shellsensor.sensor")
	meter  = otel.Meter("shellsensor.sensor")
)

var (
	runDuration          metric.Float64Histogram
	diagnosticsPublished metric.Int64Counter
	issuesDeactivated    metric.Int64Counter
	filesUnresolved      metric.Int64Counter
	artifactsIngested    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runDuration, err = meter.Float64Histogram(
			"shellsensor_run_duration_seconds",
			metric.WithDescription("Duration of sensor runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		diagnosticsPublished, err = meter.Int64Counter(
			"shellsensor_diagnostics_published_total",
			metric.WithDescription("Diagnostics handed to the sink"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		issuesDeactivated, err = meter.Int64Counter(
			"shellsensor_issues_deactivated_total",
			metric.WithDescription("Issues dropped because their rule is not active"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesUnresolved, err = meter.Int64Counter(
			"shellsensor_files_unresolved_total",
			metric.WithDescription("Reported paths that match no tracked file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		artifactsIngested, err = meter.Int64Counter(
			"shellsensor_artifacts_total",
			metric.WithDescription("Report artifacts by ingestion status"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRun(ctx context.Context, s *Summary) {
	if err := initMetrics(); err != nil {
		return
	}
	runDuration.Record(ctx, s.Duration.Seconds(),
		metric.WithAttributes(attribute.Bool("autolaunch", s.Autolaunch)))
	diagnosticsPublished.Add(ctx, int64(s.Published))
	issuesDeactivated.Add(ctx, int64(s.Deactivated))
	filesUnresolved.Add(ctx, int64(len(s.Unresolved)))
	for _, a := range s.Artifacts {
		artifactsIngested.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(a.Status))))
	}
}
