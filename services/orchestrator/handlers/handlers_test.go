// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClarionAI/clarion/pkg/extensions"
	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/route"
	"github.com/ClarionAI/clarion/services/assembly"
	"github.com/ClarionAI/clarion/services/assembly/progress"
	"github.com/ClarionAI/clarion/services/feedback"
	"github.com/ClarionAI/clarion/services/llm"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
	"github.com/ClarionAI/clarion/services/orchestrator/middleware"
	"github.com/ClarionAI/clarion/services/orchestrator/observability"
)

var testMetrics *observability.RewriteMetrics

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	testMetrics = observability.InitMetrics()
	os.Exit(m.Run())
}

// stubBackend returns a canned applied rewrite. An optional pair of
// channels turns it into a blocking backend for concurrency tests.
type stubBackend struct {
	started chan struct{}
	release chan struct{}
}

func (b *stubBackend) Rewrite(_ context.Context, _ route.Station, text string) (llm.RewriteResult, error) {
	if b.started != nil {
		b.started <- struct{}{}
		<-b.release
	}
	return llm.RewriteResult{
		Outcome:     llm.OutcomeApplied,
		RevisedText: strings.ReplaceAll(text, "was written by", "written by"),
		FixedCount:  1,
		Confidence:  0.9,
	}, nil
}

func newTestAssembly(t *testing.T, backend llm.RewriteBackend) *assembly.Orchestrator {
	t.Helper()
	orch, err := assembly.New(assembly.Config{Backend: backend})
	require.NoError(t, err)
	return orch
}

func newTestStore(t *testing.T) *feedback.Store {
	t.Helper()
	store, err := feedback.OpenStore(feedback.DefaultStoreConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	router := gin.New()
	router.GET("/health", HandleHealth())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleRewrite_Success(t *testing.T) {
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{})
	orch := newTestAssembly(t, &stubBackend{})
	router := gin.New()
	router.POST("/v1/rewrite", HandleRewrite(analyzer, orch, extensions.DefaultOptions(), testMetrics))

	rec := postJSON(router, "/v1/rewrite", datatypes.RewriteRequest{
		SessionID: "sess-1",
		BlockID:   "blk-1",
		Content:   "The report was written by the team. It was reviewed by two editors.",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp datatypes.RewriteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "blk-1", resp.BlockID)
	assert.NotEmpty(t, resp.RevisedText)
	assert.False(t, resp.Cancelled)
	assert.NotEmpty(t, resp.ResponseID)
}

func TestHandleRewrite_MalformedBody(t *testing.T) {
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{})
	orch := newTestAssembly(t, &stubBackend{})
	router := gin.New()
	router.POST("/v1/rewrite", HandleRewrite(analyzer, orch, extensions.DefaultOptions(), testMetrics))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/rewrite", strings.NewReader("{not json"))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRewrite_ValidationFailures(t *testing.T) {
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{})
	orch := newTestAssembly(t, &stubBackend{})
	router := gin.New()
	router.POST("/v1/rewrite", HandleRewrite(analyzer, orch, extensions.DefaultOptions(), testMetrics))

	tests := []struct {
		name string
		req  datatypes.RewriteRequest
	}{
		{
			name: "missing session",
			req:  datatypes.RewriteRequest{BlockID: "blk-1", Content: "Some text."},
		},
		{
			name: "missing content",
			req:  datatypes.RewriteRequest{SessionID: "sess-1", BlockID: "blk-1"},
		},
		{
			name: "tag injection in session id",
			req:  datatypes.RewriteRequest{SessionID: "sess,host=evil", BlockID: "blk-1", Content: "Some text."},
		},
		{
			name: "path traversal in block id",
			req:  datatypes.RewriteRequest{SessionID: "sess-1", BlockID: "../etc/passwd", Content: "Some text."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(router, "/v1/rewrite", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleRewrite_ConcurrentSameBlockConflicts(t *testing.T) {
	backend := &stubBackend{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{})
	orch := newTestAssembly(t, backend)
	router := gin.New()
	router.POST("/v1/rewrite", HandleRewrite(analyzer, orch, extensions.DefaultOptions(), testMetrics))

	body := datatypes.RewriteRequest{
		SessionID: "sess-9",
		BlockID:   "blk-9",
		// Passive voice routes to a station, which parks the request
		// on the blocking backend.
		Content: "The decision was made by the committee.",
	}

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- postJSON(router, "/v1/rewrite", body)
	}()

	select {
	case <-backend.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first rewrite never reached the backend")
	}

	second := postJSON(router, "/v1/rewrite", body)
	assert.Equal(t, http.StatusConflict, second.Code)

	close(backend.release)
	select {
	case first := <-firstDone:
		assert.Equal(t, http.StatusOK, first.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("first rewrite never completed")
	}
}

// blockingFilter rejects content containing a marker string.
type blockingFilter struct{}

func (blockingFilter) FilterOutbound(_ context.Context, content string) (*extensions.FilterResult, error) {
	if strings.Contains(content, "SECRET") {
		return &extensions.FilterResult{
			Content: content,
			Blocked: true,
			Detections: []extensions.Detection{
				{Type: "credential", Redacted: true},
			},
		}, nil
	}
	return &extensions.FilterResult{Content: content}, nil
}

func TestHandleRewrite_ContentFilterBlocks(t *testing.T) {
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{})
	orch := newTestAssembly(t, &stubBackend{})
	opts := extensions.DefaultOptions().WithFilter(blockingFilter{})
	router := gin.New()
	router.POST("/v1/rewrite", HandleRewrite(analyzer, orch, opts, testMetrics))

	rec := postJSON(router, "/v1/rewrite", datatypes.RewriteRequest{
		SessionID: "sess-1",
		BlockID:   "blk-2",
		Content:   "The SECRET token was leaked.",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// recordingAuditLogger captures events for inspection.
type recordingAuditLogger struct {
	mu     sync.Mutex
	events []extensions.AuditEvent
}

func (l *recordingAuditLogger) Log(_ context.Context, event extensions.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *recordingAuditLogger) Flush(context.Context) error { return nil }

func TestHandleRewrite_AuditDetailCarriesRequestID(t *testing.T) {
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{})
	orch := newTestAssembly(t, &stubBackend{})
	audit := &recordingAuditLogger{}
	opts := extensions.DefaultOptions().WithAudit(audit)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/v1/rewrite", HandleRewrite(analyzer, orch, opts, testMetrics))

	rec := postJSON(router, "/v1/rewrite", datatypes.RewriteRequest{
		SessionID: "sess-audit",
		BlockID:   "blk-1",
		Content:   "The report was written by the team.",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, audit.events)
	event := audit.events[0]
	assert.Equal(t, "rewrite_requested", event.EventType)
	assert.Equal(t, "sess-audit", event.SessionID)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), event.Detail["request_id"])
}

func TestHandleAnalyze_Success(t *testing.T) {
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{})
	router := gin.New()
	router.POST("/v1/analyze", HandleAnalyze(analyzer, testMetrics))

	doc := "The report was written by the team.\n\nResults were good!! Everyone agreed."
	rec := postJSON(router, "/v1/analyze", datatypes.AnalyzeRequest{Document: doc})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp datatypes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.BlockCount)
	assert.NotEmpty(t, resp.Violations)
	for _, v := range resp.Violations {
		assert.Less(t, v.BlockIndex, resp.BlockCount)
	}
}

func TestHandleAnalyze_EmptyDocument(t *testing.T) {
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{})
	router := gin.New()
	router.POST("/v1/analyze", HandleAnalyze(analyzer, testMetrics))

	rec := postJSON(router, "/v1/analyze", datatypes.AnalyzeRequest{Document: ""})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitDocument(t *testing.T) {
	blocks, err := splitDocument("First paragraph.\n\nSecond paragraph.\n\n\n\nThird.")
	require.NoError(t, err)
	assert.Equal(t, []string{"First paragraph.", "Second paragraph.", "Third."}, blocks)
}

func TestClassifyBlock(t *testing.T) {
	tests := []struct {
		block string
		want  detect.BlockType
	}{
		{block: "Plain prose sentence.", want: detect.BlockParagraph},
		{block: "# Title", want: detect.BlockHeading},
		{block: "- first item", want: detect.BlockListItem},
		{block: "```go\nfunc main() {}\n```", want: detect.BlockCodeBlock},
		{block: "> quoted text", want: detect.BlockQuote},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyBlock(tt.block), "block %q", tt.block)
	}
}

func TestHandleFeedback_Success(t *testing.T) {
	store := newTestStore(t)
	router := gin.New()
	router.POST("/v1/feedback", HandleFeedback(store, nil, testMetrics))

	rec := postJSON(router, "/v1/feedback", datatypes.FeedbackRequest{
		Kind:     "passive_voice",
		Lemma:    "write",
		Accepted: true,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"recorded":true`)

	snap, err := store.BuildSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestHandleFeedback_MissingKind(t *testing.T) {
	store := newTestStore(t)
	router := gin.New()
	router.POST("/v1/feedback", HandleFeedback(store, nil, testMetrics))

	rec := postJSON(router, "/v1/feedback", datatypes.FeedbackRequest{Lemma: "write"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProgressWS_InvalidSession(t *testing.T) {
	tracker := progress.NewTracker(nil)
	router := gin.New()
	router.GET("/v1/progress/ws", HandleProgressWS(tracker, testMetrics))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/progress/ws?session_id=&block_id=b1", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProgressWS_StreamsUntilTerminal(t *testing.T) {
	tracker := progress.NewTracker(nil)
	router := gin.New()
	router.GET("/v1/progress/ws", HandleProgressWS(tracker, testMetrics))

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/progress/ws?session_id=sess-1&block_id=blk-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription races the dial; keep emitting until the
	// subscriber sees an event.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				tracker.Emit(progress.Event{
					SessionID: "sess-1",
					BlockID:   "blk-1",
					Percent:   100,
					Phase:     progress.PhaseCompleted,
				})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev progress.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "sess-1", ev.SessionID)
	assert.Equal(t, 100, ev.Percent)
	assert.Equal(t, progress.PhaseCompleted, ev.Phase)
}
