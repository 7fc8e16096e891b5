// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for enterprise functionality.
//
// This package provides extension points that let hosted deployments add
// capabilities without modifying the core Clarion codebase. The open
// source version uses no-op defaults for all interfaces.
//
// # Extension Categories
//
//   - auth.go: Authentication (AuthProvider)
//   - audit.go: Compliance audit logging (AuditLogger)
//   - filter.go: Content redaction before hosted LLM calls (ContentFilter)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to service constructors to enable enterprise features. All
// fields are optional; nil values are replaced with no-op defaults by
// DefaultOptions().
type ServiceOptions struct {
	// AuthProvider validates authentication tokens.
	// Default: NopAuthProvider (always returns a valid local user)
	AuthProvider AuthProvider

	// AuditLogger records security-relevant events.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// ContentFilter redacts sensitive content before it leaves the host.
	// Default: NopContentFilter (passes through unchanged)
	ContentFilter ContentFilter
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the open source version: all
// requests allowed, no audit trail, no redaction.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		AuditLogger:   &NopAuditLogger{},
		ContentFilter: &NopContentFilter{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithFilter returns a copy of opts with the given ContentFilter.
func (opts ServiceOptions) WithFilter(filter ContentFilter) ServiceOptions {
	opts.ContentFilter = filter
	return opts
}
