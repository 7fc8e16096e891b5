// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feedback stores human accept/reject decisions and serves them
// back to the scorer as immutable snapshots.
//
// # Description
//
// Every time a reviewer accepts or rejects a flagged violation, the
// decision is recorded against a (kind, lemma, content type) pattern key.
// The scoring path never reads the store directly: a Refresher folds the
// store into a Snapshot out-of-band, and the scorer receives that snapshot
// as a plain read-only value. This keeps scoring reproducible - the same
// snapshot always produces the same scores.
//
// Persistence is tiered the same way as elsewhere in Clarion:
//
//	Hot (Snapshot in RAM) → Warm (BadgerDB) → Cold (Weaviate mirror)
//
// # Thread Safety
//
// Snapshot is immutable after construction and safe to share. Store and
// Refresher are safe for concurrent use.
package feedback

import (
	"fmt"
	"time"

	"github.com/ClarionAI/clarion/services/analysis/detect"
)

// PatternKey identifies one learned feedback pattern.
type PatternKey struct {
	// Kind is the rule identifier, e.g. "passive_voice".
	Kind detect.Kind

	// Lemma is the normalized head word of the flagged construction.
	// Empty for rules that have no meaningful lemma.
	Lemma string

	// ContentType is the document register the decision was made under.
	ContentType detect.ContentType
}

// String renders the key in its storage form: kind/lemma/content_type.
func (k PatternKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.Lemma, k.ContentType)
}

// PatternStats aggregates decisions for one pattern key.
type PatternStats struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Total returns the number of recorded decisions.
func (s PatternStats) Total() int { return s.Accepted + s.Rejected }

// AcceptRate returns the fraction of decisions that were acceptances,
// or 0.5 when no decisions exist (uninformative prior).
func (s PatternStats) AcceptRate() float64 {
	t := s.Total()
	if t == 0 {
		return 0.5
	}
	return float64(s.Accepted) / float64(t)
}

// Snapshot is an immutable view of the feedback store at one point in
// time. The zero value behaves like an empty snapshot.
type Snapshot struct {
	patterns map[PatternKey]PatternStats
	builtAt  time.Time
}

// NewSnapshot builds a snapshot over the given pattern map. The map is
// owned by the snapshot afterwards; callers must not mutate it.
func NewSnapshot(patterns map[PatternKey]PatternStats) *Snapshot {
	return &Snapshot{patterns: patterns, builtAt: time.Now().UTC()}
}

// EmptySnapshot returns a snapshot with no patterns.
func EmptySnapshot() *Snapshot {
	return &Snapshot{patterns: map[PatternKey]PatternStats{}}
}

// Lookup returns the stats for a key and whether any decisions exist.
func (s *Snapshot) Lookup(key PatternKey) (PatternStats, bool) {
	if s == nil || s.patterns == nil {
		return PatternStats{}, false
	}
	st, ok := s.patterns[key]
	return st, ok
}

// Len returns the number of distinct pattern keys.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// BuiltAt reports when the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}
