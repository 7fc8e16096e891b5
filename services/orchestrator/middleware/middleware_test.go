// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClarionAI/clarion/pkg/extensions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(provider extensions.AuthProvider) (*gin.Engine, *extensions.AuthInfo) {
	var captured extensions.AuthInfo
	router := gin.New()
	router.Use(AuthMiddleware(provider))
	router.GET("/ping", func(c *gin.Context) {
		if info := GetAuthInfo(c); info != nil {
			captured = *info
		}
		c.String(http.StatusOK, "pong")
	})
	return router, &captured
}

func TestAuthMiddleware_NopProviderAdmitsEverything(t *testing.T) {
	router, captured := newAuthRouter(&extensions.NopAuthProvider{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local-user", captured.UserID)
	assert.True(t, captured.HasRole("admin"))
}

func TestAuthMiddleware_StaticTokenAccepted(t *testing.T) {
	provider, err := extensions.NewStaticTokenProvider("secret-token")
	require.NoError(t, err)
	router, captured := newAuthRouter(provider)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "token-user", captured.UserID)
}

func TestAuthMiddleware_StaticTokenRejected(t *testing.T) {
	provider, err := extensions.NewStaticTokenProvider("secret-token")
	require.NoError(t, err)
	router, _ := newAuthRouter(provider)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong token", header: "Bearer wrong"},
		{name: "malformed scheme", header: "Basic secret-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "unauthorized")
		})
	}
}

func TestGetAuthInfo_MissingReturnsNil(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetAuthInfo(c))
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/ping", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_HonorsClientSupplied(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "retry-42")
	router.ServeHTTP(rec, req)

	assert.Equal(t, "retry-42", rec.Header().Get(RequestIDHeader))
}
