// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ClarionAI/clarion/pkg/extensions"
)

func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})

	assert.Equal(t, 12210, cfg.Port)
	assert.Equal(t, "./data/feedback", cfg.FeedbackDir)
	assert.Equal(t, 5*time.Minute, cfg.SnapshotInterval)
	assert.Equal(t, "clarion-otel-collector:4317", cfg.OTelEndpoint)
	assert.True(t, cfg.EnableMetrics)
	assert.Empty(t, cfg.LLMBackend)
	assert.Empty(t, cfg.RulesPath)
}

func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := applyConfigDefaults(Config{
		Port:             8080,
		LLMBackend:       "openai",
		FeedbackDir:      "/var/lib/clarion/feedback",
		SnapshotInterval: time.Minute,
		OTelEndpoint:     "collector.internal:4317",
		RulesPath:        "/etc/clarion/rules.yaml",
	})

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "openai", cfg.LLMBackend)
	assert.Equal(t, "/var/lib/clarion/feedback", cfg.FeedbackDir)
	assert.Equal(t, time.Minute, cfg.SnapshotInterval)
	assert.Equal(t, "collector.internal:4317", cfg.OTelEndpoint)
	assert.Equal(t, "/etc/clarion/rules.yaml", cfg.RulesPath)
}

func TestApplyConfigDefaults_TableDriven(t *testing.T) {
	tests := []struct {
		name     string
		in       Config
		wantPort int
		wantDir  string
	}{
		{name: "zero config", in: Config{}, wantPort: 12210, wantDir: "./data/feedback"},
		{name: "port only", in: Config{Port: 9999}, wantPort: 9999, wantDir: "./data/feedback"},
		{name: "dir only", in: Config{FeedbackDir: "/tmp/fb"}, wantPort: 12210, wantDir: "/tmp/fb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyConfigDefaults(tt.in)
			assert.Equal(t, tt.wantPort, got.Port)
			assert.Equal(t, tt.wantDir, got.FeedbackDir)
		})
	}
}

// Verifies the option-defaulting logic used in New() without standing
// up external services.
func TestServiceOptions_WithNilUseDefaults(t *testing.T) {
	var opts *extensions.ServiceOptions

	var applied extensions.ServiceOptions
	if opts != nil {
		applied = *opts
	} else {
		applied = extensions.DefaultOptions()
	}

	assert.NotNil(t, applied.AuthProvider)
	assert.NotNil(t, applied.AuditLogger)
	assert.NotNil(t, applied.ContentFilter)
}

func TestServiceOptions_WithCustomProviders(t *testing.T) {
	provider, err := extensions.NewStaticTokenProvider("tok")
	assert.NoError(t, err)

	opts := extensions.DefaultOptions().WithAuth(provider)

	assert.Same(t, provider, opts.AuthProvider)
	assert.NotNil(t, opts.AuditLogger)
}

func TestServiceImplementsInterface(t *testing.T) {
	var _ Service = (*service)(nil)
}
