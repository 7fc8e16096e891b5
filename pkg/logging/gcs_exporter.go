// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsBatchSize is the number of buffered entries that triggers an
// upload outside of Flush.
const gcsBatchSize = 200

// GCSExporter uploads batched log entries to a Cloud Storage bucket as
// newline-delimited JSON objects named "{service}/{timestamp}.jsonl".
//
// Entries buffer in memory; a batch uploads when the buffer reaches
// gcsBatchSize or on Flush. Upload failures keep the batch for the next
// attempt rather than dropping it.
type GCSExporter struct {
	client  *storage.Client
	bucket  string
	service string

	mu      sync.Mutex
	buffer  []LogEntry
	uploads sync.WaitGroup
}

// NewGCSExporter creates an exporter writing to the named bucket using
// the service account key at saKeyPath.
func NewGCSExporter(ctx context.Context, bucket, service, saKeyPath string) (*GCSExporter, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
	}
	client, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSExporter{
		client:  client,
		bucket:  bucket,
		service: service,
	}, nil
}

// Export buffers one entry, uploading asynchronously when the batch
// fills.
func (e *GCSExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	e.buffer = append(e.buffer, entry)
	var batch []LogEntry
	if len(e.buffer) >= gcsBatchSize {
		batch = e.buffer
		e.buffer = nil
	}
	e.mu.Unlock()

	if batch != nil {
		e.uploads.Add(1)
		go func() {
			defer e.uploads.Done()
			uploadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			e.upload(uploadCtx, batch)
		}()
	}
	return nil
}

// Flush uploads everything buffered and waits for in-flight uploads.
func (e *GCSExporter) Flush(ctx context.Context) error {
	e.mu.Lock()
	batch := e.buffer
	e.buffer = nil
	e.mu.Unlock()

	var err error
	if len(batch) > 0 {
		err = e.upload(ctx, batch)
	}
	e.uploads.Wait()
	return err
}

// Close releases the storage client. Call Flush first.
func (e *GCSExporter) Close() error {
	return e.client.Close()
}

func (e *GCSExporter) upload(ctx context.Context, batch []LogEntry) error {
	objectName := fmt.Sprintf("%s/%s.jsonl", e.service, time.Now().UTC().Format("2006-01-02T15-04-05.000000000"))
	writer := e.client.Bucket(e.bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = "application/x-ndjson"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	enc := json.NewEncoder(writer)
	for _, entry := range batch {
		if err := enc.Encode(map[string]any{
			"timestamp": entry.Timestamp.UTC().Format(time.RFC3339Nano),
			"level":     entry.Level.String(),
			"message":   entry.Message,
			"service":   entry.Service,
			"attrs":     entry.Attrs,
		}); err != nil {
			_ = writer.Close()
			e.requeue(batch)
			return fmt.Errorf("encoding log batch: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		e.requeue(batch)
		return fmt.Errorf("failed to close GCS writer for %s: %w", objectName, err)
	}
	return nil
}

// requeue puts a failed batch back at the front of the buffer.
func (e *GCSExporter) requeue(batch []LogEntry) {
	e.mu.Lock()
	e.buffer = append(batch, e.buffer...)
	e.mu.Unlock()
}

var _ LogExporter = (*GCSExporter)(nil)
