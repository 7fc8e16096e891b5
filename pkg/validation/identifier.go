// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for security-critical
// identifiers.
//
// Session and block identifiers arrive from clients and end up in
// key-value store keys, time-series tags, and log attributes. Validating
// them here prevents injection through those surfaces (tag-key
// injection, path traversal in store keys, log forgery via newlines).
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// maxIdentifierLen bounds session and block IDs. UUIDs are 36 chars;
// 64 leaves headroom for prefixed schemes like "doc-3f2e...".
const maxIdentifierLen = 64

// ValidateSessionID validates a client-supplied session identifier.
//
// Valid session IDs:
//   - 1-64 characters
//   - Letters, digits, dots, hyphens, underscores
//   - Must start with a letter or digit
//
// Returns an error describing the first violation found.
//
// Example:
//
//	if err := validation.ValidateSessionID(req.SessionID); err != nil {
//	    return fmt.Errorf("invalid session: %w", err)
//	}
func ValidateSessionID(id string) error {
	return validateIdentifier("session ID", id)
}

// ValidateBlockID validates a client-supplied block identifier. Same
// rules as session IDs.
func ValidateBlockID(id string) error {
	return validateIdentifier("block ID", id)
}

func validateIdentifier(label, id string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", label)
	}
	if len(id) > maxIdentifierLen {
		return fmt.Errorf("%s exceeds %d characters", label, maxIdentifierLen)
	}
	if !isAlnum(rune(id[0])) {
		return fmt.Errorf("%s must start with a letter or digit: %q", label, id)
	}
	for _, r := range id {
		if !isAlnum(r) && r != '.' && r != '-' && r != '_' {
			return fmt.Errorf("%s contains invalid character %q", label, r)
		}
	}
	return nil
}

func isAlnum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// SanitizeIdentifier trims whitespace and validates the result as a
// session or block identifier. Use when accepting IDs from interactive
// input where trailing newlines are common.
func SanitizeIdentifier(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := validateIdentifier("identifier", trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
