// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the
// orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring prose
// analysis and rewrite operations. Metrics include:
//   - Request counters (by endpoint, status, error type)
//   - Violation counters (by kind and severity)
//   - Latency histograms (per station, per rewrite pass)
//   - Active rewrite gauges
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "clarion"

// Subsystem for rewrite pipeline metrics
const rewriteSubsystem = "rewrite"

// RewriteMetrics holds all Prometheus metrics for the analysis and
// rewrite pipeline. Initialize once at startup via InitMetrics().
type RewriteMetrics struct {
	// RequestsTotal counts API requests by endpoint and status.
	// Labels: endpoint (rewrite, analyze, feedback), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ViolationsTotal counts gated violations by kind and severity.
	// Labels: kind (passive_voice, repeated_punctuation, ...),
	// severity (low, medium, high)
	ViolationsTotal *prometheus.CounterVec

	// StationDurationSeconds measures per-station rewrite latency.
	// Labels: station (Structural Pass, Grammar Pass, Style Pass),
	// status (completed, no_change, failed)
	StationDurationSeconds *prometheus.HistogramVec

	// RewriteDurationSeconds measures total block rewrite duration.
	// Labels: status (success, cancelled, error)
	RewriteDurationSeconds *prometheus.HistogramVec

	// ActiveRewrites tracks rewrite passes currently in flight.
	ActiveRewrites prometheus.Gauge

	// ErrorsTotal counts errors by type and endpoint.
	// Labels: endpoint, error_code (validation, llm_error, in_flight, ...)
	ErrorsTotal *prometheus.CounterVec

	// ErrorsFixedTotal counts fixes applied, split by surgical
	// replacements and station rewrites.
	// Labels: source (surgical, Structural Pass, Grammar Pass, Style Pass)
	ErrorsFixedTotal *prometheus.CounterVec

	// FeedbackDecisionsTotal counts recorded user decisions.
	// Labels: decision (accepted, rejected)
	FeedbackDecisionsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of RewriteMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *RewriteMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once
// at application startup; calling twice panics on duplicate
// registration.
func InitMetrics() *RewriteMetrics {
	DefaultMetrics = &RewriteMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: rewriteSubsystem,
				Name:      "requests_total",
				Help:      "Total number of API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ViolationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: rewriteSubsystem,
				Name:      "violations_total",
				Help:      "Total gated violations by kind and severity",
			},
			[]string{"kind", "severity"},
		),

		StationDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: rewriteSubsystem,
				Name:      "station_duration_seconds",
				Help:      "Per-station rewrite duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"station", "status"},
		),

		RewriteDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: rewriteSubsystem,
				Name:      "duration_seconds",
				Help:      "Total block rewrite duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		ActiveRewrites: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: rewriteSubsystem,
				Name:      "active",
				Help:      "Number of rewrite passes currently in flight",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: rewriteSubsystem,
				Name:      "errors_total",
				Help:      "Total errors by type and endpoint",
			},
			[]string{"endpoint", "error_code"},
		),

		ErrorsFixedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: rewriteSubsystem,
				Name:      "errors_fixed_total",
				Help:      "Total fixes applied by source",
			},
			[]string{"source"},
		),

		FeedbackDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: rewriteSubsystem,
				Name:      "feedback_decisions_total",
				Help:      "Total recorded user feedback decisions",
			},
			[]string{"decision"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeLLMError indicates rewrite backend failure.
	ErrorCodeLLMError ErrorCode = "llm_error"

	// ErrorCodeTimeout indicates operation timeout.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeInFlight indicates a rejected concurrent rewrite for
	// the same block.
	ErrorCodeInFlight ErrorCode = "in_flight"

	// ErrorCodeFeedbackStore indicates a feedback store write failure.
	ErrorCodeFeedbackStore ErrorCode = "feedback_store"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"

	// ErrorCodeClientDisconnect indicates the client disconnected.
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents an API endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointRewrite is the block rewrite endpoint.
	EndpointRewrite Endpoint = "rewrite"

	// EndpointAnalyze is the document analysis endpoint.
	EndpointAnalyze Endpoint = "analyze"

	// EndpointFeedback is the feedback recording endpoint.
	EndpointFeedback Endpoint = "feedback"

	// EndpointProgressWS is the progress websocket endpoint.
	EndpointProgressWS Endpoint = "progress_ws"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed API request.
func (m *RewriteMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordError records a categorized error.
func (m *RewriteMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// RecordViolation records a violation admitted by the confidence gate.
func (m *RewriteMetrics) RecordViolation(kind, severity string) {
	m.ViolationsTotal.WithLabelValues(kind, severity).Inc()
}

// RecordStation records a station run's duration and outcome.
func (m *RewriteMetrics) RecordStation(station, status string, seconds float64) {
	m.StationDurationSeconds.WithLabelValues(station, status).Observe(seconds)
}

// RecordRewrite records a complete block rewrite.
func (m *RewriteMetrics) RecordRewrite(status string, seconds float64) {
	m.RewriteDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordFixes records fixes applied by a source (surgical or a station
// name).
func (m *RewriteMetrics) RecordFixes(source string, count int) {
	if count <= 0 {
		return
	}
	m.ErrorsFixedTotal.WithLabelValues(source).Add(float64(count))
}

// RecordFeedback records a user accept/reject decision.
func (m *RewriteMetrics) RecordFeedback(accepted bool) {
	decision := "rejected"
	if accepted {
		decision = "accepted"
	}
	m.FeedbackDecisionsTotal.WithLabelValues(decision).Inc()
}

// RewriteStarted increments the active rewrites gauge.
func (m *RewriteMetrics) RewriteStarted() {
	m.ActiveRewrites.Inc()
}

// RewriteEnded decrements the active rewrites gauge.
func (m *RewriteMetrics) RewriteEnded() {
	m.ActiveRewrites.Dec()
}
