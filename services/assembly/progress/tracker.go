// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package progress delivers rewrite progress events to subscribers.
//
// # Description
//
// The tracker is a per-(session, block) subscriber registry with strictly
// fire-and-forget semantics: emitting never blocks the rewrite pipeline.
// Events to a full or absent subscriber are dropped, not queued, because a
// stalled websocket must never slow down text processing.
//
// # Thread Safety
//
// Tracker is safe for concurrent use.
package progress

import (
	"log/slog"
	"sync"
)

// Phase names the pipeline stage a progress event describes.
type Phase string

const (
	PhaseInitializing     Phase = "initializing"
	PhaseRouting          Phase = "routing"
	PhaseProcessing       Phase = "processing"
	PhaseStationCompleted Phase = "station_completed"
	PhasePassCompleted    Phase = "pass_completed"
	PhaseCompleted        Phase = "request_completed"
	PhaseCancelled        Phase = "cancelled"
)

// Event is one write-once progress record. The stream for a given
// (session, block) is append-only and never re-read by the emitter.
type Event struct {
	SessionID   string `json:"session_id"`
	BlockID     string `json:"block_id"`
	PassOrdinal int    `json:"pass_ordinal"`
	StationName string `json:"station_name,omitempty"`
	Percent     int    `json:"percent"`
	Phase       Phase  `json:"phase"`
	Message     string `json:"message,omitempty"`
}

// subscriberBuffer absorbs short bursts between websocket writes. A
// subscriber further behind than this loses events.
const subscriberBuffer = 32

type streamKey struct {
	sessionID string
	blockID   string
}

type subscriber struct {
	ch chan Event
}

// Tracker fans progress events out to registered subscribers.
type Tracker struct {
	mu      sync.RWMutex
	streams map[streamKey][]*subscriber
	logger  *slog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		streams: make(map[streamKey][]*subscriber),
		logger:  logger,
	}
}

// Subscribe registers interest in one (session, block) stream. The
// returned cancel func unregisters the subscriber and closes the channel;
// it is safe to call more than once.
func (t *Tracker) Subscribe(sessionID, blockID string) (<-chan Event, func()) {
	key := streamKey{sessionID: sessionID, blockID: blockID}
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	t.mu.Lock()
	t.streams[key] = append(t.streams[key], sub)
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			subs := t.streams[key]
			for i, s := range subs {
				if s == sub {
					t.streams[key] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(t.streams[key]) == 0 {
				delete(t.streams, key)
			}
			t.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Emit pushes an event to every subscriber of its stream. It never
// blocks: with no subscriber the event is dropped outright, and a
// subscriber whose buffer is full misses this event.
func (t *Tracker) Emit(ev Event) {
	key := streamKey{sessionID: ev.SessionID, blockID: ev.BlockID}

	t.mu.RLock()
	subs := t.streams[key]
	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			t.logger.Debug("progress subscriber lagging, dropping event",
				"session_id", ev.SessionID,
				"block_id", ev.BlockID,
				"phase", ev.Phase,
				"percent", ev.Percent)
		}
	}
	t.mu.RUnlock()
}

// SubscriberCount reports active subscribers for a stream, for tests and
// the health endpoint.
func (t *Tracker) SubscriberCount(sessionID, blockID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.streams[streamKey{sessionID: sessionID, blockID: blockID}])
}
