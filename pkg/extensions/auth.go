// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when authentication fails. Enterprise
// implementations should wrap this error with additional context.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication.
//
// UserID is the only required field. Metadata is the extension point
// for provider-specific claims.
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	UserID string

	// Email is the user's email address. May be empty.
	Email string

	// Roles contains the user's role memberships.
	// Common roles: "admin", "editor", "viewer"
	Roles []string

	// Metadata holds additional claims from the identity provider.
	Metadata map[string]any
}

// HasRole checks if the user has a specific role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens.
//
// The open source version uses NopAuthProvider, which authenticates
// every request as a local admin. Enterprise implementations validate
// tokens against identity providers (Okta, Auth0, Azure AD).
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	// Returns an error wrapping ErrUnauthorized when the token is
	// invalid or expired.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider authenticates every request as a local admin user.
// This lets the CLI and single-user deployments run without any
// authentication infrastructure.
type NopAuthProvider struct{}

// Validate always succeeds with a local admin identity.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

var _ AuthProvider = (*NopAuthProvider)(nil)

// StaticTokenProvider validates requests against a single shared token.
// Suitable for small deployments behind a reverse proxy; not a
// substitute for a real identity provider.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider accepting only token.
func NewStaticTokenProvider(token string) (*StaticTokenProvider, error) {
	if token == "" {
		return nil, errors.New("static token cannot be empty")
	}
	return &StaticTokenProvider{token: token}, nil
}

// Validate compares in constant time to avoid timing side channels.
func (p *StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.token)) != 1 {
		return nil, fmt.Errorf("token mismatch: %w", ErrUnauthorized)
	}
	return &AuthInfo{
		UserID: "token-user",
		Roles:  []string{"editor"},
	}, nil
}

var _ AuthProvider = (*StaticTokenProvider)(nil)
