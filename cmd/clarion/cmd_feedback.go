// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ClarionAI/clarion/pkg/ux"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
)

var (
	feedbackKind        string
	feedbackLemma       string
	feedbackContentType string
	feedbackAccepted    bool

	feedbackCmd = &cobra.Command{
		Use:   "feedback",
		Short: "Record an accept/reject decision for a flagged pattern",
		Long: `Records whether a suggested fix was accepted or rejected. Decisions
feed the learned-feedback scoring stage: patterns writers consistently
reject lose confidence and eventually stop being flagged.

Run without flags for an interactive form, or pass --kind and --lemma
for scripted use.`,
		RunE: runFeedbackCommand,
	}
)

func init() {
	feedbackCmd.Flags().StringVar(&feedbackKind, "kind", "",
		"Violation kind (e.g. passive_voice)")
	feedbackCmd.Flags().StringVar(&feedbackLemma, "lemma", "",
		"Lemma of the flagged construction (e.g. write)")
	feedbackCmd.Flags().StringVar(&feedbackContentType, "content-type", "general",
		"Content type the decision applies to")
	feedbackCmd.Flags().BoolVar(&feedbackAccepted, "accepted", false,
		"Whether the suggested fix was accepted")
}

func runFeedbackCommand(cmd *cobra.Command, args []string) error {
	if feedbackKind == "" || feedbackLemma == "" {
		if !ux.IsInteractive() {
			return errors.New("--kind and --lemma are required in non-interactive mode")
		}
		if err := runFeedbackForm(); err != nil {
			return err
		}
	}

	client := newAPIClient(serverURL)
	resp, err := client.Feedback(cmd.Context(), datatypes.FeedbackRequest{
		Kind:        feedbackKind,
		Lemma:       feedbackLemma,
		ContentType: feedbackContentType,
		Accepted:    feedbackAccepted,
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to record feedback: %v", err))
		return err
	}

	decision := "rejected"
	if feedbackAccepted {
		decision = "accepted"
	}
	ux.Success(fmt.Sprintf("Recorded %s decision for %s/%s (request %s)",
		decision, feedbackKind, feedbackLemma, resp.RequestID))
	return nil
}

// runFeedbackForm collects the decision interactively.
func runFeedbackForm() error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Violation kind").
				Description("The rule that produced the suggestion").
				Options(
					huh.NewOption("Passive voice", "passive_voice"),
					huh.NewOption("Repeated punctuation", "repeated_punctuation"),
					huh.NewOption("Double space", "double_space"),
				).
				Value(&feedbackKind),
			huh.NewInput().
				Title("Lemma").
				Description("Base form of the flagged construction, e.g. write").
				Validate(func(s string) error {
					if s == "" {
						return errors.New("lemma must not be empty")
					}
					return nil
				}).
				Value(&feedbackLemma),
			huh.NewSelect[string]().
				Title("Content type").
				Options(huh.NewOptions(
					"general", "technical", "creative", "legal",
					"api", "procedural", "marketing",
				)...).
				Value(&feedbackContentType),
			huh.NewConfirm().
				Title("Was the suggested fix accepted?").
				Affirmative("Accepted").
				Negative("Rejected").
				Value(&feedbackAccepted),
		),
	)
	return form.Run()
}
