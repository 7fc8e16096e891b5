// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package route partitions accepted violations into deterministic
// surgical fixes and severity-ordered rewrite stations.
//
// # Description
//
// Surgical violations have a mechanical string substitution and never
// need the AI backend. Contextual violations are grouped by severity into
// a fixed station sequence: Structural → Grammar → Style. The order is a
// correctness requirement - later stations rewrite prose whose structure
// earlier stations have already repaired. Empty severity buckets produce
// no station at all.
//
// # Thread Safety
//
// All functions are pure; Router is safe for concurrent use.
package route

import (
	"regexp"
	"strings"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/gate"
)

// Station names, in processing order.
const (
	StationStructural = "Structural Pass"
	StationGrammar    = "Grammar Pass"
	StationStyle      = "Style Pass"
)

// Station is an ordered group of contextual violations of one severity.
// Created here; its runtime status lives with the assembly line.
type Station struct {
	// Name is the human-readable station name.
	Name string

	// Ordinal is the zero-based processing position within the pass.
	Ordinal int

	// Severity is the bucket this station drains.
	Severity gate.Severity

	// Violations are the contextual violations assigned to this station.
	Violations []gate.Violation
}

// SurgicalFix is one deterministic substitution.
type SurgicalFix struct {
	Violation   gate.Violation
	Original    string
	Replacement string
}

// Plan is the router's output for one block.
type Plan struct {
	Surgical []SurgicalFix
	Stations []Station
}

// ContextualCount returns the number of violations across all stations.
func (p Plan) ContextualCount() int {
	var n int
	for _, st := range p.Stations {
		n += len(st.Violations)
	}
	return n
}

// surgicalRepair maps a kind to its substitution, or ok=false when the
// kind needs contextual rewriting.
func surgicalRepair(v gate.Violation) (string, bool) {
	flagged := v.Detection.FlaggedText
	switch v.Detection.Kind {
	case detect.KindRepeatedPunctuation:
		return collapsePunctuation(flagged), true
	case detect.KindDoubleSpace:
		return " ", true
	case detect.KindArticleMisuse:
		// The detector supplies the corrected article as its first
		// suggestion; without one there is nothing mechanical to do.
		if len(v.Suggestions) > 0 {
			return v.Suggestions[0], true
		}
		return "", false
	default:
		return "", false
	}
}

var ellipsis = regexp.MustCompile(`^\.{4,}$`)

// collapsePunctuation reduces a run of repeated marks to a single mark,
// preserving a three-dot ellipsis.
func collapsePunctuation(run string) string {
	if run == "" {
		return run
	}
	if ellipsis.MatchString(run) {
		return "..."
	}
	return run[:1]
}

// Route classifies violations and builds the station sequence.
//
// Violations are exclusively owned by the station they land in; callers
// must not reuse the input slice afterwards.
func Route(violations []gate.Violation) Plan {
	var plan Plan
	buckets := map[gate.Severity][]gate.Violation{}

	for _, v := range violations {
		if replacement, ok := surgicalRepair(v); ok {
			plan.Surgical = append(plan.Surgical, SurgicalFix{
				Violation:   v,
				Original:    v.Detection.FlaggedText,
				Replacement: replacement,
			})
			continue
		}
		buckets[v.Severity] = append(buckets[v.Severity], v)
	}

	// Fixed order; empty buckets are omitted entirely and ordinals stay
	// contiguous over the stations that do exist.
	ordered := []struct {
		name     string
		severity gate.Severity
	}{
		{StationStructural, gate.SeverityHigh},
		{StationGrammar, gate.SeverityMedium},
		{StationStyle, gate.SeverityLow},
	}
	for _, o := range ordered {
		vs := buckets[o.severity]
		if len(vs) == 0 {
			continue
		}
		plan.Stations = append(plan.Stations, Station{
			Name:       o.name,
			Ordinal:    len(plan.Stations),
			Severity:   o.severity,
			Violations: vs,
		})
	}
	return plan
}

// ApplySurgical performs every substitution against text and returns the
// revised text plus the number of fixes that actually landed. A fix whose
// original text no longer occurs (an earlier fix may have consumed it)
// is skipped, not an error.
func ApplySurgical(text string, fixes []SurgicalFix) (string, int) {
	var applied int
	for _, f := range fixes {
		if f.Original == "" || f.Original == f.Replacement {
			continue
		}
		if !strings.Contains(text, f.Original) {
			continue
		}
		text = strings.Replace(text, f.Original, f.Replacement, 1)
		applied++
	}
	return text, applied
}
