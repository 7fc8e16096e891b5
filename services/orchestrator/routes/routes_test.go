// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClarionAI/clarion/pkg/extensions"
	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/analysis/route"
	"github.com/ClarionAI/clarion/services/assembly"
	"github.com/ClarionAI/clarion/services/feedback"
	"github.com/ClarionAI/clarion/services/llm"
	"github.com/ClarionAI/clarion/services/orchestrator/observability"
)

var testMetrics *observability.RewriteMetrics

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	testMetrics = observability.InitMetrics()
	os.Exit(m.Run())
}

type noopBackend struct{}

func (noopBackend) Rewrite(_ context.Context, _ route.Station, text string) (llm.RewriteResult, error) {
	return llm.RewriteResult{Outcome: llm.OutcomeNoChange, RevisedText: text}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	orch, err := assembly.New(assembly.Config{Backend: noopBackend{}})
	require.NoError(t, err)

	store, err := feedback.OpenStore(feedback.DefaultStoreConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	router := gin.New()
	SetupRoutes(router, Deps{
		Analyzer: analysis.NewAnalyzer(analysis.AnalyzerConfig{}),
		Assembly: orch,
		Store:    store,
		Options:  extensions.DefaultOptions(),
		Metrics:  testMetrics,
	})
	return router
}

func TestSetupRoutes_HealthAndMetricsUnauthenticated(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSetupRoutes_V1EndpointsRegistered(t *testing.T) {
	router := newTestRouter(t)

	// Malformed bodies prove the handler is wired without standing up
	// a full pipeline.
	for _, path := range []string{"/v1/rewrite", "/v1/analyze", "/v1/feedback"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json"))
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress/ws?session_id=&block_id=", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetupRoutes_UnknownRoute404s(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetupRoutes_RequestIDHeaderSet(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
