// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.AuthProvider == nil || opts.AuditLogger == nil || opts.ContentFilter == nil {
		t.Fatal("DefaultOptions must populate every extension point")
	}

	info, err := opts.AuthProvider.Validate(context.Background(), "")
	if err != nil {
		t.Fatalf("nop auth should never fail: %v", err)
	}
	if info.UserID != "local-user" || !info.HasRole("admin") {
		t.Errorf("unexpected nop identity: %+v", info)
	}
}

func TestStaticTokenProvider(t *testing.T) {
	if _, err := NewStaticTokenProvider(""); err == nil {
		t.Error("empty token must be rejected")
	}

	provider, err := NewStaticTokenProvider("s3cret")
	if err != nil {
		t.Fatalf("NewStaticTokenProvider: %v", err)
	}

	info, err := provider.Validate(context.Background(), "s3cret")
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if info.UserID != "token-user" {
		t.Errorf("UserID = %q, want token-user", info.UserID)
	}

	_, err = provider.Validate(context.Background(), "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("invalid token should wrap ErrUnauthorized, got %v", err)
	}
}

func TestFileAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileAuditLogger(path)
	if err != nil {
		t.Fatalf("NewFileAuditLogger: %v", err)
	}

	ctx := context.Background()
	for _, eventType := range []string{"rewrite_requested", "feedback_recorded"} {
		err := logger.Log(ctx, AuditEvent{
			EventType: eventType,
			UserID:    "local-user",
			SessionID: "s-1",
		})
		if err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"rewrite_requested"`) {
		t.Errorf("first line missing event type: %s", lines[0])
	}
	if !strings.Contains(lines[0], `"timestamp"`) {
		t.Error("timestamp should be auto-populated")
	}
}

func TestWithOptions(t *testing.T) {
	base := DefaultOptions()
	provider, _ := NewStaticTokenProvider("t")

	opts := base.WithAuth(provider)
	if opts.AuthProvider != provider {
		t.Error("WithAuth should replace the provider")
	}
	if base.AuthProvider == provider {
		t.Error("WithAuth must not mutate the receiver")
	}
}

func TestNopContentFilter(t *testing.T) {
	filter := &NopContentFilter{}
	result, err := filter.FilterOutbound(context.Background(), "sensitive text")
	if err != nil {
		t.Fatalf("FilterOutbound: %v", err)
	}
	if result.Content != "sensitive text" || result.Blocked {
		t.Errorf("nop filter must pass content through, got %+v", result)
	}
}
