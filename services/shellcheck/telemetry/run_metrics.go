// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/shellsensor/services/shellcheck/sensor"
)

// =============================================================================
// Run Metrics
// =============================================================================

// RunMetrics holds Prometheus collectors summarizing sensor runs.
//
// # Description
//
// Unlike the OpenTelemetry instruments recorded inside the pipeline,
// RunMetrics live in their own registry so a one-shot run can write them
// to a node_exporter textfile and a long-lived host can serve them.
//
// # Thread Safety
//
// Safe for concurrent use.
type RunMetrics struct {
	registry *prometheus.Registry

	runs        prometheus.Counter
	runErrors   prometheus.Counter
	artifacts   *prometheus.CounterVec
	diagnostics prometheus.Counter
	deactivated prometheus.Counter
	dropped     prometheus.Counter
	outOfRange  prometheus.Counter
	unresolved  prometheus.Gauge
	lastRun     prometheus.Gauge
	runDuration prometheus.Histogram
}

// NewRunMetrics creates RunMetrics with a fresh registry.
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		registry: reg,
		runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shellsensor",
			Name:      "runs_total",
			Help:      "Completed sensor runs",
		}),
		runErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shellsensor",
			Name:      "analysis_errors_total",
			Help:      "Analysis errors reported by sensor runs",
		}),
		artifacts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shellsensor",
			Name:      "artifacts_total",
			Help:      "Discovered report artifacts by status",
		}, []string{"status"}),
		diagnostics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shellsensor",
			Name:      "diagnostics_published_total",
			Help:      "Diagnostics handed to the sink",
		}),
		deactivated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shellsensor",
			Name:      "issues_deactivated_total",
			Help:      "Issues skipped because their rule is not active",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shellsensor",
			Name:      "issues_dropped_total",
			Help:      "Issues skipped because their file was not found",
		}),
		outOfRange: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shellsensor",
			Name:      "issues_out_of_range_total",
			Help:      "Issues skipped because their line is past the end of the file",
		}),
		unresolved: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "shellsensor",
			Name:      "unresolved_files",
			Help:      "Reported files not found in the last run",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "shellsensor",
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the last observed run",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shellsensor",
			Name:      "run_duration_seconds",
			Help:      "Sensor run duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe folds a run summary into the collectors. A nil summary is ignored.
func (m *RunMetrics) Observe(sum *sensor.Summary) {
	if sum == nil {
		return
	}
	m.runs.Inc()
	m.runErrors.Add(float64(len(sum.AnalysisErrors)))
	for _, a := range sum.Artifacts {
		m.artifacts.WithLabelValues(string(a.Status)).Inc()
	}
	m.diagnostics.Add(float64(sum.Published))
	m.deactivated.Add(float64(sum.Deactivated))
	m.dropped.Add(float64(sum.Dropped))
	m.outOfRange.Add(float64(sum.OutOfRange))
	m.unresolved.Set(float64(len(sum.Unresolved)))
	if !sum.StartedAt.IsZero() {
		m.lastRun.Set(float64(sum.StartedAt.UnixNano()) / float64(time.Second))
	}
	m.runDuration.Observe(sum.Duration.Seconds())
}

// WriteToTextfile writes the registry in the node_exporter textfile format.
func (m *RunMetrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Handler serves the run metrics together with the default registry, which
// holds the OpenTelemetry prometheus exporter when it is enabled.
func (m *RunMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, m.registry},
		promhttp.HandlerOpts{},
	)
}
