// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	asmprogress "github.com/ClarionAI/clarion/services/assembly/progress"
)

// =============================================================================
// Messages
// =============================================================================

// ProgressEventMsg wraps an assembly progress event for the TUI loop.
type ProgressEventMsg struct {
	Event asmprogress.Event
}

// ProgressClosedMsg signals the event stream ended.
type ProgressClosedMsg struct{}

// =============================================================================
// Model
// =============================================================================

// RewriteProgressModel is the bubbletea model that renders live rewrite
// progress from an assembly event stream.
//
// # Thread Safety
//
// Designed for single-threaded use inside the bubbletea event loop. The
// event channel is the only cross-goroutine boundary.
type RewriteProgressModel struct {
	events <-chan asmprogress.Event

	bar     progress.Model
	spin    spinner.Model
	percent int
	phase   asmprogress.Phase
	station string
	message string
	done    bool
}

// NewRewriteProgressModel builds a model reading from events.
func NewRewriteProgressModel(events <-chan asmprogress.Event) RewriteProgressModel {
	bar := progress.New(progress.WithGradient(string(ColorInkDeep), string(ColorInkBright)))
	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = Styles.Highlight

	return RewriteProgressModel{
		events: events,
		bar:    bar,
		spin:   spin,
		phase:  asmprogress.PhaseInitializing,
	}
}

// Init starts the spinner and the event pump.
func (m RewriteProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

// waitForEvent blocks on the event channel inside a tea.Cmd so the
// event loop stays responsive.
func (m RewriteProgressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return ProgressClosedMsg{}
		}
		return ProgressEventMsg{Event: event}
	}
}

// Update handles progress events and key presses.
func (m RewriteProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressEventMsg:
		m.percent = msg.Event.Percent
		m.phase = msg.Event.Phase
		m.station = msg.Event.StationName
		m.message = msg.Event.Message
		if m.phase == asmprogress.PhaseCompleted || m.phase == asmprogress.PhaseCancelled {
			m.done = true
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case ProgressClosedMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the progress bar with the current phase and station.
func (m RewriteProgressModel) View() string {
	var b strings.Builder

	label := string(m.phase)
	if m.station != "" {
		label = m.station
	}

	if m.done {
		icon := IconSuccess
		if m.phase == asmprogress.PhaseCancelled {
			icon = IconWarning
		}
		fmt.Fprintf(&b, "%s %s\n", icon.Render(), label)
	} else {
		fmt.Fprintf(&b, "%s %s\n", m.spin.View(), Styles.Subtitle.Render(label))
	}

	fmt.Fprintf(&b, "%s %3d%%\n", m.bar.ViewAs(float64(m.percent)/100.0), m.percent)
	if m.message != "" {
		fmt.Fprintf(&b, "%s\n", Styles.Muted.Render(m.message))
	}
	return b.String()
}

// Done reports whether the model reached a terminal event.
func (m RewriteProgressModel) Done() bool {
	return m.done
}

// RunRewriteProgress drives the TUI until the stream completes. In
// machine mode it degrades to plain line-per-event output.
func RunRewriteProgress(events <-chan asmprogress.Event) error {
	if !ShouldShowProgress() || !IsInteractive() {
		for event := range events {
			fmt.Printf("PROGRESS: %d%% %s %s\n", event.Percent, event.Phase, event.StationName)
			if event.Phase == asmprogress.PhaseCompleted || event.Phase == asmprogress.PhaseCancelled {
				break
			}
		}
		return nil
	}

	program := tea.NewProgram(NewRewriteProgressModel(events))
	_, err := program.Run()
	return err
}
