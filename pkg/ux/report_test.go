// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"testing"
	"time"

	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/evidence"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/analysis/route"
	"github.com/ClarionAI/clarion/services/assembly"
)

func withPersonality(t *testing.T, level PersonalityLevel) {
	t.Helper()
	prev := GetPersonality()
	SetPersonality(Personality{Level: level, ShowSuggestions: true})
	t.Cleanup(func() { SetPersonality(prev) })
}

func sampleViolation(kind detect.Kind, sev gate.Severity, score float64, text string) gate.Violation {
	return gate.Violation{
		Detection: detect.Detection{
			Kind:        kind,
			FlaggedText: text,
			Sentence:    text,
		},
		Score:       evidence.Score{Value: score},
		Severity:    sev,
		Suggestions: []string{"rewrite in active voice"},
	}
}

func TestRenderAnalysisReport_Empty(t *testing.T) {
	withPersonality(t, PersonalityFull)

	out := RenderAnalysisReport(&analysis.Report{})
	if !strings.Contains(out, "No violations found") {
		t.Errorf("empty report should say so, got: %q", out)
	}
}

func TestRenderAnalysisReport_GroupsBySeverity(t *testing.T) {
	withPersonality(t, PersonalityFull)

	report := &analysis.Report{
		Violations: []gate.Violation{
			sampleViolation("passive_voice", gate.SeverityMedium, 0.55, "was primed by the daemon"),
			sampleViolation("repeated_punctuation", gate.SeverityHigh, 0.90, "wait!!!"),
		},
	}

	out := RenderAnalysisReport(report)

	highIdx := strings.Index(out, "high severity")
	medIdx := strings.Index(out, "medium severity")
	if highIdx == -1 || medIdx == -1 {
		t.Fatalf("expected both severity headers, got: %q", out)
	}
	if highIdx > medIdx {
		t.Error("high severity should render before medium")
	}
	if !strings.Contains(out, "rewrite in active voice") {
		t.Error("suggestions should render when enabled")
	}
	if !strings.Contains(out, "2") || !strings.Contains(out, "violations") {
		t.Errorf("summary line missing: %q", out)
	}
}

func TestRenderAnalysisReport_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	report := &analysis.Report{
		Violations: []gate.Violation{
			sampleViolation("double_space", gate.SeverityLow, 0.85, "two  spaces"),
		},
	}

	out := RenderAnalysisReport(report)
	if !strings.HasPrefix(out, "VIOLATIONS: 1") {
		t.Errorf("machine output should lead with the count, got: %q", out)
	}
	if !strings.Contains(out, "double_space") {
		t.Errorf("machine output should be tab-separated fields, got: %q", out)
	}
	if strings.Contains(out, "✓") || strings.Contains(out, "•") {
		t.Error("machine output must not contain icons")
	}
}

func TestRenderRewriteResult(t *testing.T) {
	withPersonality(t, PersonalityFull)

	result := &assembly.Result{
		ErrorsFixed:   5,
		SurgicalFixed: 2,
		Confidence:    0.81,
		Passes: []*assembly.Pass{{
			Ordinal: 1,
			Status:  assembly.PassCompleted,
			Stations: []*assembly.StationRun{
				{
					Station:    route.Station{Name: route.StationGrammar, Ordinal: 1},
					Status:     assembly.StationCompleted,
					FixedCount: 3,
					Confidence: 0.9,
					Elapsed:    420 * time.Millisecond,
				},
				{
					Station: route.Station{Name: route.StationStyle, Ordinal: 2},
					Status:  assembly.StationFailed,
					Reason:  "model unavailable",
				},
			},
		}},
	}

	out := RenderRewriteResult(result)
	if !strings.Contains(out, route.StationGrammar) || !strings.Contains(out, route.StationStyle) {
		t.Errorf("station names missing: %q", out)
	}
	if !strings.Contains(out, "model unavailable") {
		t.Error("failure reason should render")
	}
	if !strings.Contains(out, "5") || !strings.Contains(out, "fixed") {
		t.Errorf("aggregate counts missing: %q", out)
	}
}

func TestRenderRewriteResult_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	result := &assembly.Result{
		ErrorsFixed: 1,
		Confidence:  0.5,
		Cancelled:   true,
	}

	out := RenderRewriteResult(result)
	if !strings.Contains(out, "RESULT: fixed=1") {
		t.Errorf("machine result line missing: %q", out)
	}
	if !strings.Contains(out, "cancelled=true") {
		t.Errorf("cancellation flag missing: %q", out)
	}
}

func TestProgressBar(t *testing.T) {
	withPersonality(t, PersonalityMachine)
	if got := ProgressBar(3, 10, 20); got != "3/10" {
		t.Errorf("machine progress = %q, want 3/10", got)
	}

	withPersonality(t, PersonalityFull)
	out := ProgressBar(5, 10, 20)
	if !strings.Contains(out, "50%") {
		t.Errorf("expected percentage in bar, got: %q", out)
	}
}
