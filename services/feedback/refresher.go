// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Refresher rebuilds snapshots out-of-band and hands the latest one to
// readers without locking.
//
// # Description
//
// The scoring path calls Current() which is a single atomic pointer load.
// A background goroutine rebuilds the snapshot on a fixed interval and,
// when the store is file-backed, additionally when fsnotify reports a
// write under the store directory (another process may share the store).
// Watcher events are debounced: a burst of writes produces one rebuild
// once the directory has been quiet for the debounce window, and the
// interval ticker repairs any event the watcher missed.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Refresher struct {
	store    *Store
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger
	current  atomic.Pointer[Snapshot]
	watcher  *fsnotify.Watcher
}

// watchDebounce is how long the store directory must stay quiet after a
// write before the watcher-triggered rebuild runs.
const watchDebounce = 2 * time.Second

// NewRefresher creates a refresher over the store and performs an initial
// synchronous build so Current() never returns nil.
//
// watchDir may be empty for in-memory stores; when set, writes under the
// directory trigger an immediate rebuild.
func NewRefresher(store *Store, interval time.Duration, watchDir string, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	r := &Refresher{store: store, interval: interval, debounce: watchDebounce, logger: logger}

	snap, err := store.BuildSnapshot()
	if err != nil {
		return nil, err
	}
	r.current.Store(snap)

	if watchDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := watcher.Add(watchDir); err != nil {
			watcher.Close()
			return nil, err
		}
		r.watcher = watcher
	}
	return r, nil
}

// Current returns the latest snapshot. Never nil after NewRefresher.
func (r *Refresher) Current() *Snapshot {
	return r.current.Load()
}

// Run rebuilds snapshots until ctx is canceled. Blocking; run it on its
// own goroutine.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer func() {
		if r.watcher != nil {
			r.watcher.Close()
		}
	}()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if r.watcher != nil {
		events = r.watcher.Events
		errs = r.watcher.Errors
	}

	// Armed by watcher events; drained so the timer channel stays quiet
	// until the first write arrives.
	quiet := time.NewTimer(r.debounce)
	if !quiet.Stop() {
		<-quiet.C
	}
	defer quiet.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.rebuild("interval")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				// Coalesce bursts: rebuild once the directory has
				// been quiet for the debounce window.
				if !quiet.Stop() {
					select {
					case <-quiet.C:
					default:
					}
				}
				quiet.Reset(r.debounce)
			}
		case <-quiet.C:
			r.rebuild("fsnotify")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("feedback store watcher error", "error", err)
		}
	}
}

// Rebuild forces an immediate snapshot rebuild, e.g. right after a batch
// of decisions has been recorded in-process.
func (r *Refresher) Rebuild() {
	r.rebuild("manual")
}

func (r *Refresher) rebuild(trigger string) {
	snap, err := r.store.BuildSnapshot()
	if err != nil {
		// Keep serving the previous snapshot; a stale view beats no view.
		r.logger.Error("feedback snapshot rebuild failed", "trigger", trigger, "error", err)
		return
	}
	r.current.Store(snap)
	r.logger.Debug("feedback snapshot refreshed",
		"trigger", trigger,
		"patterns", snap.Len())
}
