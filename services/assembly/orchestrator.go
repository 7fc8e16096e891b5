// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assembly sequences rewrite stations for one block of text.
//
// # Description
//
// The orchestrator routes accepted violations into surgical fixes and
// severity-ordered stations, then drives the stations strictly in order:
// a station never starts before its predecessor reaches a terminal
// status, and the text it operates on is exactly its predecessor's
// output (or the unmodified text when the predecessor declined or
// failed). No station outcome aborts the request; only malformed input
// does.
//
// # Thread Safety
//
// Orchestrator is safe for concurrent use. Concurrent requests for
// distinct (session, block) pairs run in parallel; a duplicate for a
// pair already in flight is rejected with ErrRewriteInFlight.
package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ClarionAI/clarion/services/analysis/route"
	"github.com/ClarionAI/clarion/services/assembly/progress"
	"github.com/ClarionAI/clarion/services/llm"
)

var (
	tracer = otel.Tracer("clarion.assembly")
	meter  = otel.Meter("clarion.assembly")
)

type flightKey struct {
	sessionID string
	blockID   string
}

// Orchestrator is the assembly line for block rewrites.
type Orchestrator struct {
	backend   llm.RewriteBackend
	tracker   *progress.Tracker
	telemetry *StationTelemetry
	logger    *slog.Logger

	inflightMu sync.Mutex
	inflight   map[flightKey]struct{}

	// Metrics (initialized lazily)
	metricsOnce     sync.Once
	stationLatency  metric.Float64Histogram
	stationOutcomes metric.Int64Counter
	requestLatency  metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
}

// Config wires the orchestrator's collaborators. Backend is required;
// everything else has a working zero value.
type Config struct {
	Backend   llm.RewriteBackend
	Tracker   *progress.Tracker
	Telemetry *StationTelemetry
	Logger    *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("rewrite backend must not be nil")
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = progress.NewTracker(cfg.Logger)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		backend:   cfg.Backend,
		tracker:   tracker,
		telemetry: cfg.Telemetry,
		logger:    logger,
		inflight:  make(map[flightKey]struct{}),
	}, nil
}

// Tracker exposes the progress tracker so transport layers can attach
// subscribers.
func (o *Orchestrator) Tracker() *progress.Tracker { return o.tracker }

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution.
func (o *Orchestrator) initMetrics() {
	o.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		o.stationLatency, err = meter.Float64Histogram("assembly_station_duration_seconds",
			metric.WithDescription("Time spent processing each rewrite station"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "station_latency: "+err.Error())
		}

		o.stationOutcomes, err = meter.Int64Counter("assembly_station_outcome_total",
			metric.WithDescription("Station terminal statuses by outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "station_outcomes: "+err.Error())
		}

		o.requestLatency, err = meter.Float64Histogram("assembly_request_duration_seconds",
			metric.WithDescription("Total block rewrite time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "request_latency: "+err.Error())
		}

		o.activeRequests, err = meter.Int64UpDownCounter("assembly_active_requests",
			metric.WithDescription("Rewrite requests currently in flight"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_requests: "+err.Error())
		}

		if len(initErrors) > 0 {
			o.logger.Error("failed to initialize some assembly metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// RewriteBlock runs one rewrite request end to end.
//
// Only malformed input returns an error. Backend no-ops and failures are
// absorbed into the per-station breakdown, and a context cancelled
// between stations yields a partial Result with Cancelled set rather
// than an error.
func (o *Orchestrator) RewriteBlock(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	key := flightKey{sessionID: req.SessionID, blockID: req.BlockID}
	o.inflightMu.Lock()
	if _, busy := o.inflight[key]; busy {
		o.inflightMu.Unlock()
		return nil, fmt.Errorf("session %s block %s: %w", req.SessionID, req.BlockID, ErrRewriteInFlight)
	}
	o.inflight[key] = struct{}{}
	o.inflightMu.Unlock()
	defer func() {
		o.inflightMu.Lock()
		delete(o.inflight, key)
		o.inflightMu.Unlock()
	}()

	o.initMetrics()

	ctx, span := tracer.Start(ctx, "assembly.RewriteBlock",
		trace.WithAttributes(
			attribute.String("session_id", req.SessionID),
			attribute.String("block_id", req.BlockID),
			attribute.Int("violations", len(req.Violations)),
		),
	)
	defer span.End()

	if o.activeRequests != nil {
		o.activeRequests.Add(ctx, 1)
		defer o.activeRequests.Add(ctx, -1)
	}

	start := time.Now()
	o.logger.Info("rewrite started",
		slog.String("session_id", req.SessionID),
		slog.String("block_id", req.BlockID),
		slog.Int("violations", len(req.Violations)),
	)

	o.emit(req, 0, 0, "", progress.PhaseInitializing, "routing violations")

	plan := route.Route(req.Violations)
	text, surgicalApplied := route.ApplySurgical(req.Content, plan.Surgical)

	pass := &Pass{Ordinal: 0, Status: PassRunning}
	for _, st := range plan.Stations {
		pass.Stations = append(pass.Stations, &StationRun{Station: st, Status: StationPending})
	}
	result := &Result{
		SessionID:     req.SessionID,
		BlockID:       req.BlockID,
		SurgicalFixed: surgicalApplied,
		Passes:        []*Pass{pass},
	}

	// Total work units are fixed at pass start so percent stays
	// monotonic even if a station is skipped later.
	totalUnits := len(pass.Stations)

	span.SetAttributes(
		attribute.Int("surgical_fixes", surgicalApplied),
		attribute.Int("stations", totalUnits),
	)

	cancelled := false
	for i, run := range pass.Stations {
		// Cancellation is honored only between stations; a station that
		// has started runs to its own terminal status.
		if err := ctx.Err(); err != nil {
			cancelled = true
			o.emit(req, percentOf(i, totalUnits), pass.Ordinal, run.Station.Name,
				progress.PhaseCancelled, "rewrite cancelled between stations")
			span.SetStatus(codes.Error, "cancelled between stations")
			break
		}
		o.runStation(ctx, req, pass, run, i, totalUnits, &text)
	}

	if !cancelled {
		pass.Status = PassCompleted
		o.emit(req, 100, pass.Ordinal, "", progress.PhasePassCompleted, "pass completed")
	}

	result.RevisedText = text
	result.Cancelled = cancelled
	result.ErrorsFixed, result.Confidence = aggregate(surgicalApplied, pass.Stations)
	result.Elapsed = time.Since(start)

	if o.requestLatency != nil {
		o.requestLatency.Record(ctx, result.Elapsed.Seconds())
	}
	if !cancelled {
		o.emit(req, 100, pass.Ordinal, "", progress.PhaseCompleted, "rewrite completed")
		span.SetStatus(codes.Ok, "")
	}

	o.logger.Info("rewrite completed",
		slog.String("session_id", req.SessionID),
		slog.String("block_id", req.BlockID),
		slog.Int("errors_fixed", result.ErrorsFixed),
		slog.Float64("confidence", result.Confidence),
		slog.Bool("cancelled", cancelled),
		slog.Duration("duration", result.Elapsed),
	)
	return result, nil
}

// runStation drives one station to a terminal status, advancing *text
// only when the backend applied a rewrite.
func (o *Orchestrator) runStation(ctx context.Context, req Request, pass *Pass, run *StationRun, index, totalUnits int, text *string) {
	ctx, span := tracer.Start(ctx, "assembly.Station",
		trace.WithAttributes(
			attribute.String("station", run.Station.Name),
			attribute.Int("violations", len(run.Station.Violations)),
		),
	)
	defer span.End()

	stationStart := time.Now()
	basePercent := percentOf(index, totalUnits)

	run.Status = StationRouting
	o.emit(req, basePercent, pass.Ordinal, run.Station.Name, progress.PhaseRouting, "station starting")

	run.Status = StationProcessing
	o.emit(req, basePercent, pass.Ordinal, run.Station.Name, progress.PhaseProcessing, "rewriting")

	res, err := o.backend.Rewrite(ctx, run.Station, *text)
	if err != nil {
		// A backend that errs instead of tagging still must not abort
		// the request.
		res = llm.RewriteResult{Outcome: llm.OutcomeFailed, Reason: err.Error()}
	}

	switch res.Outcome {
	case llm.OutcomeApplied:
		*text = res.RevisedText
		run.Status = StationCompleted
		run.FixedCount = res.FixedCount
		run.Confidence = res.Confidence
	case llm.OutcomeNoChange:
		run.Status = StationNoChange
		o.logger.Warn("station produced no change",
			slog.String("station", run.Station.Name),
			slog.String("session_id", req.SessionID),
			slog.String("block_id", req.BlockID),
		)
	default:
		run.Status = StationFailed
		run.Reason = res.Reason
		span.SetStatus(codes.Error, res.Reason)
		o.logger.Error("station failed",
			slog.String("station", run.Station.Name),
			slog.String("session_id", req.SessionID),
			slog.String("block_id", req.BlockID),
			slog.String("reason", res.Reason),
		)
	}
	run.Elapsed = time.Since(stationStart)

	if o.stationLatency != nil {
		o.stationLatency.Record(ctx, run.Elapsed.Seconds(),
			metric.WithAttributes(attribute.String("station", run.Station.Name)),
		)
	}
	if o.stationOutcomes != nil {
		o.stationOutcomes.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("station", run.Station.Name),
				attribute.String("outcome", string(run.Status)),
			),
		)
	}
	o.telemetry.RecordStation(ctx, req.SessionID, run)

	o.emit(req, percentOf(index+1, totalUnits), pass.Ordinal, run.Station.Name,
		progress.PhaseStationCompleted, fmt.Sprintf("station %s", run.Status))
}

func (o *Orchestrator) emit(req Request, percent, passOrdinal int, station string, phase progress.Phase, message string) {
	o.tracker.Emit(progress.Event{
		SessionID:   req.SessionID,
		BlockID:     req.BlockID,
		PassOrdinal: passOrdinal,
		StationName: station,
		Percent:     percent,
		Phase:       phase,
		Message:     message,
	})
}

// aggregate computes errors fixed and the violation-weighted mean
// confidence. NoChange and Failed stations keep their weight with a zero
// contribution so partial success reads as lower confidence.
func aggregate(surgical int, runs []*StationRun) (int, float64) {
	fixed := surgical
	var weightSum, confSum float64
	for _, run := range runs {
		fixed += run.FixedCount
		w := float64(len(run.Station.Violations))
		weightSum += w
		if run.Status == StationCompleted {
			confSum += w * run.Confidence
		}
	}
	if weightSum == 0 {
		// Nothing routed to a station means nothing was flagged;
		// a clean block reads as full confidence, not none.
		return fixed, 1.0
	}
	return fixed, confSum / weightSum
}

func percentOf(units, total int) int {
	if total <= 0 {
		return 100
	}
	p := units * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}

func validateRequest(req Request) error {
	if req.SessionID == "" {
		return ErrEmptySession
	}
	if req.BlockID == "" {
		return ErrEmptyBlock
	}
	if req.Content == "" {
		return ErrEmptyContent
	}
	if req.BlockType != "" && !req.BlockType.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownBlockType, req.BlockType)
	}
	return nil
}
