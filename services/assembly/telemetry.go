// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assembly

import (
	"context"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// StationTelemetry writes per-station timing points to InfluxDB. It is
// optional; a nil receiver records nothing, so the orchestrator never
// branches on whether the sink is configured.
type StationTelemetry struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// TelemetryConfig locates the InfluxDB bucket for station timings.
type TelemetryConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Logger *slog.Logger
}

// NewStationTelemetry connects a blocking write API to the configured
// bucket.
func NewStationTelemetry(cfg TelemetryConfig) *StationTelemetry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &StationTelemetry{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger,
	}
}

// RecordStation writes one timing point. Failures are logged and
// swallowed; telemetry must never affect the rewrite result.
func (t *StationTelemetry) RecordStation(ctx context.Context, sessionID string, run *StationRun) {
	if t == nil {
		return
	}
	point := influxdb2.NewPoint(
		"station_timing",
		map[string]string{
			"station": run.Station.Name,
			"status":  string(run.Status),
		},
		map[string]interface{}{
			"session_id":  sessionID,
			"elapsed_ms":  run.Elapsed.Milliseconds(),
			"fixed_count": run.FixedCount,
			"confidence":  run.Confidence,
			"violations":  len(run.Station.Violations),
		},
		time.Now(),
	)
	if err := t.writeAPI.WritePoint(ctx, point); err != nil {
		t.logger.Warn("failed to write station telemetry",
			"station", run.Station.Name,
			"error", err)
	}
}

// Close releases the underlying client.
func (t *StationTelemetry) Close() {
	if t == nil {
		return
	}
	t.client.Close()
}
