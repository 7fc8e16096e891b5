// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/assembly"
)

// timeRounding keeps station durations readable in terminal output.
const timeRounding = 10 * time.Millisecond

// =============================================================================
// Analysis Report Rendering
// =============================================================================

// RenderAnalysisReport formats an analysis report for the terminal.
// Violations are grouped by severity, high first. The returned string
// has no trailing newline.
func RenderAnalysisReport(report *analysis.Report) string {
	machine := GetPersonality().Level == PersonalityMachine

	if len(report.Violations) == 0 {
		if machine {
			return "VIOLATIONS: 0"
		}
		return fmt.Sprintf("%s %s", IconSuccess.Render(), Styles.Success.Render("No violations found"))
	}

	var b strings.Builder
	if machine {
		fmt.Fprintf(&b, "VIOLATIONS: %d\n", len(report.Violations))
		for _, v := range report.Violations {
			fmt.Fprintf(&b, "%s\t%s\t%.2f\t%s\n",
				v.Severity, v.Detection.Kind, v.Score.Value, v.Detection.FlaggedText)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	showSuggestions := GetPersonality().ShowSuggestions
	bySeverity := groupBySeverity(report.Violations)

	for _, sev := range []gate.Severity{gate.SeverityHigh, gate.SeverityMedium, gate.SeverityLow} {
		group := bySeverity[sev]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", severityIcon(sev).Render(),
			severityStyle(sev).Render(fmt.Sprintf("%s severity (%d)", sev, len(group))))
		for _, v := range group {
			fmt.Fprintf(&b, "  %s %s %s %s\n",
				IconBullet.Render(),
				Styles.Bold.Render(string(v.Detection.Kind)),
				Styles.Muted.Render(fmt.Sprintf("%.2f", v.Score.Value)),
				v.Detection.FlaggedText)
			if showSuggestions && len(v.Suggestions) > 0 {
				fmt.Fprintf(&b, "    %s %s\n",
					Styles.Muted.Render(string(IconArrow)),
					Styles.Muted.Render(v.Suggestions[0]))
			}
		}
	}

	fmt.Fprintf(&b, "\n%s %s",
		Styles.Bold.Render(fmt.Sprintf("%d", len(report.Violations))),
		Styles.Muted.Render("violations"))
	if len(report.Rejected) > 0 {
		fmt.Fprintf(&b, "  %s %s",
			Styles.Muted.Render(fmt.Sprintf("%d", len(report.Rejected))),
			Styles.Muted.Render("below threshold"))
	}
	return b.String()
}

// PrintAnalysisReport renders the report to stdout.
func PrintAnalysisReport(report *analysis.Report) {
	fmt.Println(RenderAnalysisReport(report))
}

func groupBySeverity(violations []gate.Violation) map[gate.Severity][]gate.Violation {
	groups := make(map[gate.Severity][]gate.Violation)
	for _, v := range violations {
		groups[v.Severity] = append(groups[v.Severity], v)
	}
	// Stable order within a group: document position.
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Detection.SentenceIndex < group[j].Detection.SentenceIndex
		})
	}
	return groups
}

func severityIcon(sev gate.Severity) Icon {
	switch sev {
	case gate.SeverityHigh:
		return IconError
	case gate.SeverityMedium:
		return IconWarning
	default:
		return IconPending
	}
}

func severityStyle(sev gate.Severity) lipgloss.Style {
	switch sev {
	case gate.SeverityHigh:
		return Styles.Error
	case gate.SeverityMedium:
		return Styles.Warning
	default:
		return Styles.Muted
	}
}

// =============================================================================
// Rewrite Result Rendering
// =============================================================================

// RenderRewriteResult formats an assembly result: a station breakdown
// followed by aggregate counts.
func RenderRewriteResult(result *assembly.Result) string {
	machine := GetPersonality().Level == PersonalityMachine

	var b strings.Builder
	if machine {
		for _, run := range result.StationRuns() {
			fmt.Fprintf(&b, "STATION\t%s\t%s\t%d\t%.2f\n",
				run.Station.Name, run.Status, run.FixedCount, run.Confidence)
		}
		fmt.Fprintf(&b, "RESULT: fixed=%d surgical=%d confidence=%.2f cancelled=%t",
			result.ErrorsFixed, result.SurgicalFixed, result.Confidence, result.Cancelled)
		return b.String()
	}

	for _, run := range result.StationRuns() {
		fmt.Fprintf(&b, "%s %s %s\n",
			stationIcon(run.Status).Render(),
			Styles.Subtitle.Render(run.Station.Name),
			Styles.Muted.Render(fmt.Sprintf("%d fixed, %.2f confidence, %s",
				run.FixedCount, run.Confidence, run.Elapsed.Round(timeRounding))))
		if run.Reason != "" {
			fmt.Fprintf(&b, "    %s\n", Styles.Muted.Render(run.Reason))
		}
	}

	if result.Cancelled {
		fmt.Fprintf(&b, "%s %s\n", IconWarning.Render(), Styles.Warning.Render("cancelled before completion"))
	}

	fmt.Fprintf(&b, "\n%s %s  %s %s  %s",
		Styles.Success.Render(fmt.Sprintf("%d", result.ErrorsFixed)), Styles.Muted.Render("fixed"),
		Styles.Bold.Render(fmt.Sprintf("%d", result.SurgicalFixed)), Styles.Muted.Render("surgical"),
		Styles.Muted.Render(fmt.Sprintf("confidence %.2f", result.Confidence)))
	return b.String()
}

// PrintRewriteResult renders the result to stdout.
func PrintRewriteResult(result *assembly.Result) {
	fmt.Println(RenderRewriteResult(result))
}

func stationIcon(status assembly.StationStatus) Icon {
	switch status {
	case assembly.StationCompleted:
		return IconSuccess
	case assembly.StationFailed:
		return IconError
	case assembly.StationNoChange:
		return IconWarning
	default:
		return IconPending
	}
}
