// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/ClarionAI/clarion/services/analysis/detect"
)

// patternPrefix namespaces pattern records inside the database so other
// record types can share it later.
const patternPrefix = "pattern/"

// Sentinel errors for the feedback package.
var (
	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("feedback store closed")

	// ErrInvalidKey indicates a pattern key with an empty kind.
	ErrInvalidKey = errors.New("invalid pattern key")
)

// StoreConfig holds configuration for a feedback Store.
type StoreConfig struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB operational logs. If nil, they are dropped.
	Logger *slog.Logger
}

// DefaultStoreConfig returns production defaults.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{Path: path, SyncWrites: true}
}

// Store persists accept/reject decisions in BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenStore opens (or creates) a feedback store.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open feedback database: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database. The store is unusable afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordDecision folds one accept/reject decision into the pattern stats.
//
// # Description
//
// Read-modify-write inside a single Badger transaction. Conflicting
// concurrent updates are retried by re-running the transaction.
func (s *Store) RecordDecision(key PatternKey, accepted bool) error {
	if key.Kind == "" {
		return ErrInvalidKey
	}
	dbKey := []byte(patternPrefix + key.String())

	update := func(txn *badger.Txn) error {
		var stats PatternStats
		item, err := txn.Get(dbKey)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stats)
			}); err != nil {
				return fmt.Errorf("decode pattern %s: %w", key, err)
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// First decision for this pattern.
		default:
			return err
		}

		if accepted {
			stats.Accepted++
		} else {
			stats.Rejected++
		}
		buf, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return txn.Set(dbKey, buf)
	}

	for {
		err := s.db.Update(update)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

// BuildSnapshot reads every pattern record into an immutable Snapshot.
func (s *Store) BuildSnapshot() (*Snapshot, error) {
	patterns := make(map[PatternKey]PatternStats)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(patternPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key, ok := parsePatternKey(string(item.Key()))
			if !ok {
				s.logger.Warn("skipping malformed pattern key", "key", string(item.Key()))
				continue
			}
			var stats PatternStats
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stats)
			}); err != nil {
				s.logger.Warn("skipping undecodable pattern record", "key", key.String(), "error", err)
				continue
			}
			patterns[key] = stats
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan feedback patterns: %w", err)
	}
	return NewSnapshot(patterns), nil
}

// parsePatternKey reverses PatternKey.String plus the storage prefix.
func parsePatternKey(raw string) (PatternKey, bool) {
	raw, ok := strings.CutPrefix(raw, patternPrefix)
	if !ok {
		return PatternKey{}, false
	}
	parts := strings.SplitN(raw, "/", 3)
	if len(parts) != 3 || parts[0] == "" {
		return PatternKey{}, false
	}
	return PatternKey{
		Kind:        detect.Kind(parts[0]),
		Lemma:       parts[1],
		ContentType: detect.ContentType(parts[2]),
	}, true
}
