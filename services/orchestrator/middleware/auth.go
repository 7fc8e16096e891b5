// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator
// service.
//
// # Authentication Flow
//
// AuthMiddleware extracts a bearer token from the Authorization header,
// validates it with the configured AuthProvider, and stores the
// resulting AuthInfo in the Gin context for downstream handlers.
//
// # Open Source Behavior
//
// With NopAuthProvider (the default) every request authenticates as
// "local-user" with admin privileges, so the CLI works without any
// authentication infrastructure.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ClarionAI/clarion/pkg/extensions"
)

// authInfoKey is the context key for storing AuthInfo. A package-scoped
// key prevents collisions with other context values.
const authInfoKey = "clarion_auth_info"

// SetAuthInfo stores the authenticated user info in the Gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user info from the Gin
// context. Returns nil if the request was not authenticated.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	value, exists := c.Get(authInfoKey)
	if !exists {
		return nil
	}
	info, ok := value.(*extensions.AuthInfo)
	if !ok {
		return nil
	}
	return info
}

// AuthMiddleware validates the request's bearer token with provider
// and aborts with 401 on failure.
//
// The token is read from "Authorization: Bearer <token>". A missing
// header passes an empty token to the provider, which lets
// NopAuthProvider admit unauthenticated local requests while real
// providers reject them.
func AuthMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))

		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, extensions.ErrUnauthorized) {
				status = http.StatusUnauthorized
			}
			// Do not echo provider internals to the client.
			c.AbortWithStatusJSON(status, gin.H{"error": "unauthorized"})
			return
		}

		SetAuthInfo(c, info)
		c.Next()
	}
}

func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
