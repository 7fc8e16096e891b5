// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
	"github.com/ClarionAI/clarion/services/orchestrator/middleware"
	"github.com/ClarionAI/clarion/services/orchestrator/observability"
)

var analyzeTracer = otel.Tracer("clarion.orchestrator.handlers")

// maxAnalyzeConcurrency caps the number of blocks analyzed in
// parallel. Detection is CPU-bound, so more than a handful of workers
// just thrashes the scheduler.
const maxAnalyzeConcurrency = 4

// documentSeparators split a document into prose blocks. Blank lines
// are the primary boundary; single newlines and sentence ends are the
// fallback for very long paragraphs.
var documentSeparators = []string{"\n\n", "\n", ". ", " "}

func newDocumentSplitter() textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(datatypes.MaxBlockContentBytes),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators(documentSeparators),
	)
}

// HandleAnalyze analyzes a whole document: it splits the document into
// blocks, runs each block through the detection pipeline concurrently,
// and returns the gated violations tagged with their block index.
func HandleAnalyze(analyzer *analysis.Analyzer, metrics *observability.RewriteMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := analyzeTracer.Start(c.Request.Context(), "HandleAnalyze")
		defer span.End()
		start := time.Now()

		var req datatypes.AnalyzeRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the analyze request", "error", err)
			metrics.RecordError(observability.EndpointAnalyze, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			metrics.RecordError(observability.EndpointAnalyze, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		blocks, err := splitDocument(req.Document)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordError(observability.EndpointAnalyze, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "failed to split document"})
			return
		}

		type blockResult struct {
			index  int
			report analysis.Report
		}
		results := make([]blockResult, len(blocks))

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(maxAnalyzeConcurrency)
		var mu sync.Mutex
		for i, block := range blocks {
			g.Go(func() error {
				sctx := &detect.Context{
					BlockType:   classifyBlock(block),
					ContentType: detect.ContentType(req.ContentType),
					Domain:      req.Domain,
					Audience:    req.Audience,
				}
				report := analyzer.AnalyzeBlock(gCtx, sctx, block)
				mu.Lock()
				results[i] = blockResult{index: i, report: report}
				mu.Unlock()
				return nil
			})
		}
		// AnalyzeBlock never returns an error; the group exists for
		// the concurrency limit and context propagation.
		_ = g.Wait()

		resp := datatypes.NewAnalyzeResponse(middleware.GetRequestID(c))
		resp.BlockCount = len(blocks)
		for _, r := range results {
			for _, v := range r.report.Violations {
				resp.Violations = append(resp.Violations, datatypes.NewViolationInfo(v, r.index))
				metrics.RecordViolation(string(v.Detection.Kind), string(v.Severity))
			}
		}
		resp.ProcessingTimeMs = time.Since(start).Milliseconds()

		metrics.RecordRequest(observability.EndpointAnalyze, true)
		slog.Info("Document analyzed",
			"blocks", resp.BlockCount,
			"violations", len(resp.Violations),
			"elapsed_ms", resp.ProcessingTimeMs)
		c.JSON(http.StatusOK, resp)
	}
}

// splitDocument breaks a document into analyzable prose blocks.
func splitDocument(document string) ([]string, error) {
	splitter := newDocumentSplitter()
	chunks, err := splitter.SplitText(document)
	if err != nil {
		return nil, err
	}
	blocks := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		for _, part := range strings.Split(chunk, "\n\n") {
			part = strings.TrimSpace(part)
			if part != "" {
				blocks = append(blocks, part)
			}
		}
	}
	return blocks, nil
}

// classifyBlock infers a block type from Markdown surface syntax.
// Unrecognized shapes fall back to paragraph so detection still runs.
func classifyBlock(block string) detect.BlockType {
	trimmed := strings.TrimSpace(block)
	switch {
	case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
		return detect.BlockCodeBlock
	case strings.HasPrefix(trimmed, "#"):
		return detect.BlockHeading
	case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "+ "):
		return detect.BlockListItem
	case strings.HasPrefix(trimmed, "> "):
		return detect.BlockQuote
	case strings.HasPrefix(trimmed, "|") && strings.Contains(trimmed, "|\n"):
		return detect.BlockTableCell
	default:
		return detect.BlockParagraph
	}
}
