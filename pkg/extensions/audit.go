// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AuditEvent records a security-relevant action for compliance review.
type AuditEvent struct {
	// Timestamp is when the event occurred (UTC).
	Timestamp time.Time `json:"timestamp"`

	// EventType categorizes the event.
	// Common types: "rewrite_requested", "feedback_recorded",
	// "auth_failed", "content_redacted"
	EventType string `json:"event_type"`

	// UserID identifies the acting user.
	UserID string `json:"user_id"`

	// SessionID correlates events within an editing session.
	SessionID string `json:"session_id,omitempty"`

	// Detail carries event-specific fields.
	Detail map[string]any `json:"detail,omitempty"`
}

// AuditLogger records security-relevant events.
//
// Implementations must not block the request path; buffer internally
// and surface delivery failures through Flush.
type AuditLogger interface {
	// Log records a single event.
	Log(ctx context.Context, event AuditEvent) error

	// Flush forces buffered events to durable storage.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events. Default for the open source
// version, which keeps no compliance trail.
type NopAuditLogger struct{}

func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error { return nil }
func (l *NopAuditLogger) Flush(_ context.Context) error             { return nil }

var _ AuditLogger = (*NopAuditLogger)(nil)

// FileAuditLogger appends events to a JSON Lines file. One event per
// line keeps the log greppable and stream-parseable.
type FileAuditLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileAuditLogger opens (or creates) the audit log at path.
func NewFileAuditLogger(path string) (*FileAuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &FileAuditLogger{file: file, enc: json.NewEncoder(file)}, nil
}

// Log appends one event line.
func (l *FileAuditLogger) Log(_ context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(event)
}

// Flush syncs the file to disk.
func (l *FileAuditLogger) Flush(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Sync()
}

// Close syncs and closes the underlying file.
func (l *FileAuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}

var _ AuditLogger = (*FileAuditLogger)(nil)
