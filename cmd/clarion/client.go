// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ClarionAI/clarion/services/assembly/progress"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
)

// apiClient is a thin HTTP client for the orchestrator API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Rewrites traverse up to three LLM stations; give them room.
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Rewrite submits one block rewrite and decodes the result.
func (c *apiClient) Rewrite(ctx context.Context, req datatypes.RewriteRequest) (*datatypes.RewriteResponse, error) {
	var resp datatypes.RewriteResponse
	if err := c.postJSON(ctx, "/v1/rewrite", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Feedback records one accept/reject decision.
func (c *apiClient) Feedback(ctx context.Context, req datatypes.FeedbackRequest) (*datatypes.FeedbackResponse, error) {
	var resp datatypes.FeedbackResponse
	if err := c.postJSON(ctx, "/v1/feedback", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubscribeProgress opens the progress websocket for one
// (session, block) pair and adapts it to an event channel. The channel
// closes after the terminal event or on any read error.
func (c *apiClient) SubscribeProgress(ctx context.Context, sessionID, blockID string) (<-chan progress.Event, error) {
	wsURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/v1/progress/ws"
	q := wsURL.Query()
	q.Set("session_id", sessionID)
	q.Set("block_id", blockID)
	wsURL.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, err
	}

	events := make(chan progress.Event, 16)
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev progress.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Phase == progress.PhaseCompleted || ev.Phase == progress.PhaseCancelled {
				return
			}
		}
	}()
	return events, nil
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr datatypes.ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
