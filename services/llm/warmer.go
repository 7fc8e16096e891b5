// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ModelWarmer keeps the rewrite and validator models resident in VRAM.
//
// # Description
//
// Ollama unloads a model when a different one is requested, which causes
// thrashing when a rewrite pass and a second-opinion validation alternate
// between two models. ModelWarmer pre-loads both with keep_alive so
// neither is evicted mid-pipeline.
//
// # Thread Safety
//
// ModelWarmer is safe for concurrent use.
type ModelWarmer struct {
	baseURL    string
	httpClient *http.Client
	models     map[string]*residentModel
	mu         sync.RWMutex
	logger     *slog.Logger
}

type residentModel struct {
	Name         string
	KeepAlive    string
	IsLoaded     bool
	LoadedAt     time.Time
	LoadDuration time.Duration
}

// WarmupConfig specifies one model to pre-load.
type WarmupConfig struct {
	// Model is the model identifier (e.g. "granite4:micro-h").
	Model string

	// KeepAlive controls how long the model stays loaded.
	// "-1" = infinite (recommended), "5m" = five minutes.
	KeepAlive string

	// Priority determines loading order. Higher loads first, so the
	// rewrite model should outrank the validator.
	Priority int

	// NumCtx is the context window to load with. Ollama falls back to
	// 4096 when unset, which truncates long blocks.
	NumCtx int
}

type warmupRequest struct {
	Model     string                 `json:"model"`
	Messages  []warmupMessage        `json:"messages"`
	Stream    bool                   `json:"stream"`
	KeepAlive string                 `json:"keep_alive,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type warmupMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewModelWarmer creates a warmer for the Ollama server at baseURL.
func NewModelWarmer(baseURL string, logger *slog.Logger) *ModelWarmer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelWarmer{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // model loading can be slow
		},
		models: make(map[string]*residentModel),
		logger: logger,
	}
}

// WarmAll pre-loads the configured models in priority order.
//
// Models load sequentially to avoid VRAM contention; if VRAM is
// insufficient, a later model may still evict an earlier one.
func (w *ModelWarmer) WarmAll(ctx context.Context, configs []WarmupConfig) error {
	if len(configs) == 0 {
		return nil
	}

	sorted := make([]WarmupConfig, len(configs))
	copy(sorted, configs)
	for i := 0; i < len(sorted)-1; i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Priority > sorted[i].Priority {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	w.logger.Info("Warming models", slog.Int("count", len(configs)))

	for _, cfg := range sorted {
		if err := w.Warm(ctx, cfg.Model, cfg.KeepAlive, cfg.NumCtx); err != nil {
			w.logger.Error("Failed to warm model",
				slog.String("model", cfg.Model),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("warming model %s: %w", cfg.Model, err)
		}
	}
	return nil
}

// Warm loads one model by sending a minimal ping with keep_alive set.
func (w *ModelWarmer) Warm(ctx context.Context, model string, keepAlive string, numCtx int) error {
	startTime := time.Now()

	w.logger.Info("Warming model",
		slog.String("model", model),
		slog.String("keep_alive", keepAlive),
		slog.Int("num_ctx", numCtx),
	)

	options := make(map[string]interface{})
	if numCtx > 0 {
		options["num_ctx"] = numCtx
	}

	req := warmupRequest{
		Model:     model,
		Messages:  []warmupMessage{{Role: "user", Content: "ping"}},
		Stream:    false,
		KeepAlive: keepAlive,
		Options:   options,
	}

	if err := w.post(ctx, req); err != nil {
		return err
	}

	loadDuration := time.Since(startTime)

	w.mu.Lock()
	w.models[model] = &residentModel{
		Name:         model,
		KeepAlive:    keepAlive,
		IsLoaded:     true,
		LoadedAt:     time.Now(),
		LoadDuration: loadDuration,
	}
	w.mu.Unlock()

	w.logger.Info("Model warmed successfully",
		slog.String("model", model),
		slog.Duration("load_duration", loadDuration),
	)
	return nil
}

// Unload evicts a model immediately by pinging with keep_alive "0".
func (w *ModelWarmer) Unload(ctx context.Context, model string) error {
	w.logger.Info("Unloading model", slog.String("model", model))

	req := warmupRequest{
		Model:     model,
		Messages:  []warmupMessage{{Role: "user", Content: "bye"}},
		Stream:    false,
		KeepAlive: "0",
	}
	if err := w.post(ctx, req); err != nil {
		return err
	}

	w.mu.Lock()
	if resident, ok := w.models[model]; ok {
		resident.IsLoaded = false
	}
	w.mu.Unlock()
	return nil
}

// LoadedModels reports tracked state; it does not query Ollama.
func (w *ModelWarmer) LoadedModels() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.models))
	for name, resident := range w.models {
		if resident.IsLoaded {
			names = append(names, name)
		}
	}
	return names
}

func (w *ModelWarmer) post(ctx context.Context, req warmupRequest) error {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	chatURL := w.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", chatURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	_, _ = io.ReadAll(resp.Body)
	return nil
}
