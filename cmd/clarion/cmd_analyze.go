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
	"strings"

	"github.com/spf13/cobra"

	"github.com/ClarionAI/clarion/pkg/ux"
	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/evidence"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/ruleset"
)

var (
	analyzeContentType string
	analyzeRulesPath   string

	analyzeCmd = &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a document for prose violations",
		Long: `Runs the detection and confidence-gating pipeline locally, without a
running orchestrator, and prints the gated violations. Detection is
pure in-process work; no LLM is contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyzeCommand,
	}
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeContentType, "content-type", "general",
		"Content type: technical, creative, legal, api, procedural, marketing, general")
	analyzeCmd.Flags().StringVar(&analyzeRulesPath, "rules", "",
		"Rule configuration YAML (default: embedded)")
}

func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		ux.Error(fmt.Sprintf("Cannot read %s: %v", args[0], err))
		return err
	}

	analyzer, err := buildLocalAnalyzer(analyzeRulesPath)
	if err != nil {
		ux.Error(fmt.Sprintf("Cannot load rules: %v", err))
		return err
	}

	combined := &analysis.Report{}
	for _, block := range splitIntoBlocks(string(data)) {
		sctx := &detect.Context{
			BlockType:   detect.BlockParagraph,
			ContentType: detect.ContentType(analyzeContentType),
		}
		report := analyzer.AnalyzeBlock(cmd.Context(), sctx, block)
		combined.Violations = append(combined.Violations, report.Violations...)
		combined.Rejected = append(combined.Rejected, report.Rejected...)
	}

	ux.PrintAnalysisReport(combined)
	return nil
}

// buildLocalAnalyzer assembles the in-process pipeline from a rule
// file, mirroring what the orchestrator does server-side minus the
// feedback store and validator.
func buildLocalAnalyzer(rulesPath string) (*analysis.Analyzer, error) {
	var rules *ruleset.Rules
	var err error
	if rulesPath != "" {
		rules, err = ruleset.LoadFile(rulesPath)
	} else {
		rules, err = ruleset.Load()
	}
	if err != nil {
		return nil, err
	}

	return analysis.NewAnalyzer(analysis.AnalyzerConfig{
		Scorer: evidence.NewScorer(evidence.ScorerConfig{
			BaseOverrides:  rules.BaseOverrides,
			FeedbackWeight: rules.FeedbackWeight,
		}),
		Gate: gate.New(gate.Config{
			Threshold:         rules.Threshold,
			SeverityOverrides: rules.SeverityOverrides,
		}),
	}), nil
}

func splitIntoBlocks(document string) []string {
	var blocks []string
	for _, part := range strings.Split(document, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			blocks = append(blocks, part)
		}
	}
	return blocks
}
