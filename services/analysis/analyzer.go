// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis composes detection, evidence scoring, and gating into
// the block-level analysis surface used by the rewrite pipeline and the
// CLI.
package analysis

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/evidence"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/feedback"
)

var tracer = otel.Tracer("clarion.analysis")

// SnapshotProvider hands the analyzer a read-only feedback snapshot per
// call. The feedback refresher satisfies it; tests use a fixed snapshot.
type SnapshotProvider interface {
	Current() *feedback.Snapshot
}

// staticSnapshot adapts a fixed snapshot into a SnapshotProvider.
type staticSnapshot struct{ snap *feedback.Snapshot }

func (s staticSnapshot) Current() *feedback.Snapshot { return s.snap }

// StaticSnapshot wraps a fixed snapshot, mainly for tests and one-shot
// CLI runs.
func StaticSnapshot(snap *feedback.Snapshot) SnapshotProvider {
	if snap == nil {
		snap = feedback.EmptySnapshot()
	}
	return staticSnapshot{snap: snap}
}

// Report is the outcome of analyzing one block: the accepted violations
// plus the rejected detections with their reasons, so callers can show
// why a candidate was discarded.
type Report struct {
	Violations []gate.Violation
	Rejected   []RejectedDetection
}

// RejectedDetection pairs a discarded detection with the gate's reason
// and the full evidence trace.
type RejectedDetection struct {
	Detection detect.Detection
	Score     evidence.Score
	Reason    string
}

// Analyzer runs detect → score → gate for one block of text.
//
// # Thread Safety
//
// Analyzer is immutable after construction and safe for concurrent use.
type Analyzer struct {
	registry  *detect.Registry
	scorer    *evidence.Scorer
	gate      *gate.Gate
	snapshots SnapshotProvider
	logger    *slog.Logger
}

// AnalyzerConfig wires the analysis pipeline. Nil fields select
// defaults: the built-in detector registry, a default scorer and gate,
// and an empty feedback snapshot.
type AnalyzerConfig struct {
	Registry  *detect.Registry
	Scorer    *evidence.Scorer
	Gate      *gate.Gate
	Snapshots SnapshotProvider
	Logger    *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = detect.NewRegistry(logger,
			detect.PassiveVoiceSource{},
			detect.PunctuationSource{},
		)
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = evidence.NewScorer(evidence.ScorerConfig{Logger: logger})
	}
	g := cfg.Gate
	if g == nil {
		g = gate.New(gate.Config{Logger: logger})
	}
	snapshots := cfg.Snapshots
	if snapshots == nil {
		snapshots = StaticSnapshot(nil)
	}
	return &Analyzer{
		registry:  registry,
		scorer:    scorer,
		gate:      g,
		snapshots: snapshots,
		logger:    logger,
	}
}

// AnalyzeBlock detects, scores, and gates one block of text. The
// feedback snapshot is pinned once at entry so every detection in the
// block scores against the same learned state.
func (a *Analyzer) AnalyzeBlock(ctx context.Context, sctx *detect.Context, block string) Report {
	ctx, span := tracer.Start(ctx, "analysis.AnalyzeBlock")
	defer span.End()

	if sctx == nil {
		sctx = &detect.Context{BlockType: detect.BlockUnknown, ContentType: detect.ContentGeneral}
	}

	snap := a.snapshots.Current()
	doc := evidence.ProfileDocument(block)
	detections := a.registry.DetectBlock(ctx, sctx, block)

	var report Report
	for _, det := range detections {
		score := a.scorer.Score(det, sctx, doc, snap)
		decision := a.gate.Decide(ctx, det, sctx, score)
		if decision.Accepted {
			report.Violations = append(report.Violations, *decision.Violation)
			continue
		}
		report.Rejected = append(report.Rejected, RejectedDetection{
			Detection: det,
			Score:     score,
			Reason:    decision.Reason,
		})
	}

	span.SetAttributes(
		attribute.Int("detections", len(detections)),
		attribute.Int("accepted", len(report.Violations)),
	)
	a.logger.Debug("block analyzed",
		"block_type", sctx.BlockType,
		"detections", len(detections),
		"accepted", len(report.Violations),
	)
	return report
}
