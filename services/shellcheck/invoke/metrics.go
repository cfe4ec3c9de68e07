// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package invoke

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("shellsensor.invoke")
	meter  = otel.Meter("shellsensor.invoke")
)

var (
	invocationDuration metric.Float64Histogram
	invocationsTotal   metric.Int64Counter
	scriptsDetected    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		invocationDuration, err = meter.Float64Histogram(
			"shellcheck_invocation_duration_seconds",
			metric.WithDescription("Duration of shellcheck invocations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		invocationsTotal, err = meter.Int64Counter(
			"shellcheck_invocations_total",
			metric.WithDescription("Shellcheck invocations by dialect and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		scriptsDetected, err = meter.Int64Counter(
			"shellcheck_scripts_detected_total",
			metric.WithDescription("Scripts selected for analysis by dialect"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordInvocation(ctx context.Context, dialect, outcome string, files int, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("dialect", dialect),
		attribute.String("outcome", outcome),
	)
	invocationsTotal.Add(ctx, 1, attrs)
	invocationDuration.Record(ctx, d.Seconds(), attrs)
	scriptsDetected.Add(ctx, int64(files), metric.WithAttributes(attribute.String("dialect", dialect)))
}
