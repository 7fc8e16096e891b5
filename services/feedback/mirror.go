// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// PatternClassName is the Weaviate class holding mirrored patterns.
const PatternClassName = "FeedbackPattern"

// mirrorNamespace seeds deterministic object ids so re-mirroring the same
// pattern updates in place instead of duplicating.
var mirrorNamespace = uuid.MustParse("7c9f6c1a-02b4-4d57-9a1e-60b2f4a5d8e3")

// Mirror replicates feedback patterns into Weaviate.
//
// # Description
//
// The warm BadgerDB store is authoritative; the mirror is the cold tier
// shared across deployments. Mirroring is best-effort: failures are logged
// and never surfaced to the scoring or recording paths.
type Mirror struct {
	client *weaviate.Client
	logger *slog.Logger
}

// NewMirror creates a mirror over an existing Weaviate client.
func NewMirror(client *weaviate.Client, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{client: client, logger: logger}
}

// PatternClass returns the schema class for mirrored patterns.
func PatternClass() *models.Class {
	return &models.Class{
		Class:       PatternClassName,
		Description: "Aggregated human accept/reject decisions per rule pattern",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "kind", DataType: []string{"text"}, Description: "Rule identifier"},
			{Name: "lemma", DataType: []string{"text"}, Description: "Normalized head word"},
			{Name: "contentType", DataType: []string{"text"}, Description: "Document register"},
			{Name: "accepted", DataType: []string{"int"}, Description: "Accept count"},
			{Name: "rejected", DataType: []string{"int"}, Description: "Reject count"},
		},
	}
}

// EnsureSchema creates the pattern class if it does not exist yet.
func (m *Mirror) EnsureSchema(ctx context.Context) error {
	exists, err := m.client.Schema().ClassExistenceChecker().
		WithClassName(PatternClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check %s class: %w", PatternClassName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.Schema().ClassCreator().WithClass(PatternClass()).Do(ctx); err != nil {
		// Another instance may have raced us; treat "already exists" as fine.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("create %s class: %w", PatternClassName, err)
	}
	m.logger.Info("created weaviate class", "class", PatternClassName)
	return nil
}

// Push mirrors every pattern in the snapshot. Returns the number of
// patterns that failed; errors are logged per pattern, not returned.
func (m *Mirror) Push(ctx context.Context, snap *Snapshot) int {
	var failed int
	for key, stats := range snap.patterns {
		id := strfmt.UUID(uuid.NewSHA1(mirrorNamespace, []byte(key.String())).String())
		_, err := m.client.Data().Creator().
			WithClassName(PatternClassName).
			WithID(id.String()).
			WithProperties(map[string]interface{}{
				"kind":        key.Kind,
				"lemma":       key.Lemma,
				"contentType": key.ContentType,
				"accepted":    stats.Accepted,
				"rejected":    stats.Rejected,
			}).
			Do(ctx)
		if err != nil {
			// Object may already exist; fall back to an update in place.
			if uerr := m.client.Data().Updater().
				WithClassName(PatternClassName).
				WithID(id.String()).
				WithProperties(map[string]interface{}{
					"kind":        key.Kind,
					"lemma":       key.Lemma,
					"contentType": key.ContentType,
					"accepted":    stats.Accepted,
					"rejected":    stats.Rejected,
				}).
				Do(ctx); uerr != nil {
				failed++
				m.logger.Warn("failed to mirror pattern",
					"pattern", key.String(),
					"create_error", err,
					"update_error", uerr)
			}
		}
	}
	if failed == 0 {
		m.logger.Debug("mirrored feedback snapshot", "patterns", snap.Len())
	}
	return failed
}
