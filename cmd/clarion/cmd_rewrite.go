// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ClarionAI/clarion/pkg/ux"
	"github.com/ClarionAI/clarion/pkg/validation"
	"github.com/ClarionAI/clarion/services/analysis/route"
	"github.com/ClarionAI/clarion/services/assembly"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
)

var (
	rewriteContentType string
	rewriteWatch       bool
	rewriteWrite       bool

	rewriteCmd = &cobra.Command{
		Use:   "rewrite [file]",
		Short: "Rewrite a block of prose through the assembly line",
		Long: `Sends the file's content to a running orchestrator, which detects
violations, applies surgical fixes, and routes the rest through the
Structural, Grammar, and Style passes. Requires the orchestrator
(and its LLM backend) to be running.`,
		Args: cobra.ExactArgs(1),
		RunE: runRewriteCommand,
	}
)

func init() {
	rewriteCmd.Flags().StringVar(&rewriteContentType, "content-type", "general",
		"Content type: technical, creative, legal, api, procedural, marketing, general")
	rewriteCmd.Flags().BoolVar(&rewriteWatch, "watch", false,
		"Stream live per-station progress while the rewrite runs")
	rewriteCmd.Flags().BoolVar(&rewriteWrite, "write", false,
		"Write the revised text back to the file")
}

func runRewriteCommand(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		ux.Error(fmt.Sprintf("Cannot read %s: %v", args[0], err))
		return err
	}

	sessionID := uuid.New().String()
	blockID := blockIDForFile(args[0])

	client := newAPIClient(serverURL)

	var progressDone chan error
	if rewriteWatch {
		progressDone = make(chan error, 1)
		events, err := client.SubscribeProgress(cmd.Context(), sessionID, blockID)
		if err != nil {
			ux.Warning(fmt.Sprintf("Progress stream unavailable: %v", err))
			progressDone = nil
		} else {
			go func() { progressDone <- ux.RunRewriteProgress(events) }()
		}
	}

	resp, err := client.Rewrite(cmd.Context(), datatypes.RewriteRequest{
		SessionID:   sessionID,
		BlockID:     blockID,
		Content:     string(data),
		ContentType: rewriteContentType,
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Rewrite failed: %v", err))
		return err
	}

	if progressDone != nil {
		select {
		case <-progressDone:
		case <-time.After(2 * time.Second):
		}
	}

	ux.PrintRewriteResult(resultFromResponse(resp))

	if rewriteWrite && resp.RevisedText != "" {
		if err := os.WriteFile(args[0], []byte(resp.RevisedText), 0o644); err != nil {
			ux.Error(fmt.Sprintf("Cannot write %s: %v", args[0], err))
			return err
		}
		ux.Success(fmt.Sprintf("Wrote revised text to %s", args[0]))
	}
	return nil
}

// blockIDForFile derives a stable block identifier from the file name,
// falling back to a UUID when the name contains characters the API
// rejects.
func blockIDForFile(path string) string {
	base := filepath.Base(path)
	if id, err := validation.SanitizeIdentifier(base); err == nil {
		return id
	}
	return uuid.New().String()
}

// resultFromResponse rebuilds the renderer's input from the wire form.
func resultFromResponse(resp *datatypes.RewriteResponse) *assembly.Result {
	result := &assembly.Result{
		SessionID:     resp.SessionID,
		BlockID:       resp.BlockID,
		RevisedText:   resp.RevisedText,
		ErrorsFixed:   resp.ErrorsFixed,
		SurgicalFixed: resp.SurgicalFixed,
		Confidence:    resp.Confidence,
		Cancelled:     resp.Cancelled,
		Elapsed:       time.Duration(resp.ProcessingTimeMs) * time.Millisecond,
	}
	if len(resp.Stations) == 0 {
		return result
	}
	pass := &assembly.Pass{Ordinal: 1, Status: assembly.PassCompleted}
	for _, st := range resp.Stations {
		pass.Stations = append(pass.Stations, &assembly.StationRun{
			Station:    route.Station{Name: st.Station, Ordinal: st.Ordinal},
			Status:     assembly.StationStatus(st.Status),
			FixedCount: st.FixedCount,
			Confidence: st.Confidence,
			Elapsed:    time.Duration(st.ElapsedMs) * time.Millisecond,
			Reason:     st.Reason,
		})
	}
	result.Passes = []*assembly.Pass{pass}
	return result
}
