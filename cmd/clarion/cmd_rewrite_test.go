// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ClarionAI/clarion/services/assembly"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
)

func TestBlockIDForFile(t *testing.T) {
	assert.Equal(t, "draft.md", blockIDForFile("/home/user/docs/draft.md"))
	assert.Equal(t, "notes_v2.txt", blockIDForFile("notes_v2.txt"))

	// Names the API rejects fall back to a UUID.
	got := blockIDForFile("/tmp/über draft.md")
	assert.NotEqual(t, "über draft.md", got)
	assert.Len(t, got, 36)
}

func TestResultFromResponse(t *testing.T) {
	resp := &datatypes.RewriteResponse{
		SessionID:     "sess-1",
		BlockID:       "blk-1",
		RevisedText:   "Revised.",
		ErrorsFixed:   3,
		SurgicalFixed: 1,
		Confidence:    0.82,
		Stations: []datatypes.StationBreakdown{
			{Station: "Grammar Pass", Ordinal: 0, Status: "completed", FixedCount: 2, Confidence: 0.9, ElapsedMs: 1200},
			{Station: "Style Pass", Ordinal: 1, Status: "no_change"},
		},
		ProcessingTimeMs: 1500,
	}

	result := resultFromResponse(resp)

	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, 3, result.ErrorsFixed)
	assert.Equal(t, 1, result.SurgicalFixed)
	runs := result.StationRuns()
	assert.Len(t, runs, 2)
	assert.Equal(t, "Grammar Pass", runs[0].Station.Name)
	assert.Equal(t, assembly.StationCompleted, runs[0].Status)
	assert.Equal(t, assembly.StationNoChange, runs[1].Status)
}

func TestResultFromResponse_NoStations(t *testing.T) {
	result := resultFromResponse(&datatypes.RewriteResponse{SessionID: "s", BlockID: "b"})
	assert.Empty(t, result.Passes)
	assert.Empty(t, result.StationRuns())
}
