// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command clarion is the prose-quality CLI.
//
// It analyzes documents for style and grammar violations, drives
// block rewrites through a running orchestrator, and records
// accept/reject feedback that tunes future confidence scoring.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ClarionAI/clarion/pkg/logging"
	"github.com/ClarionAI/clarion/pkg/ux"
)

var (
	serverURL   string
	personality string

	rootCmd = &cobra.Command{
		Use:   "clarion",
		Short: "A CLI for evidence-based prose linting and rewriting",
		Long: `Clarion analyzes prose for style and grammar violations, scores each
finding against linguistic and structural evidence, and rewrites blocks
through a staged assembly line backed by a local or hosted LLM.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if personality != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personality))
			} else {
				ux.InitPersonality()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		envOr("CLARION_SERVER_URL", "http://localhost:12210"),
		"Orchestrator base URL")
	rootCmd.PersistentFlags().StringVar(&personality, "personality", "",
		"Output personality: full, minimal, or machine")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := logging.New(logging.Config{Service: "cli", Quiet: true})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
