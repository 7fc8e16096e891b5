// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the Clarion orchestrator HTTP server.
//
// This is the main entry point for the containerized orchestrator
// service. It reads configuration from environment variables and
// starts the server.
//
// # Environment Variables
//
//   - CLARION_PORT: HTTP server port (default: 12210)
//   - CLARION_LLM_BACKEND: generation provider - ollama, openai, anthropic (default: ollama)
//   - CLARION_RULES_PATH: rule configuration YAML (default: embedded)
//   - CLARION_FEEDBACK_DIR: feedback store directory (default: ./data/feedback)
//   - CLARION_WARM_MODELS: pre-load Ollama models at startup (default: false)
//   - WEAVIATE_SERVICE_URL: Weaviate URL for feedback mirroring (optional)
//   - INFLUXDB_URL / INFLUXDB_TOKEN / INFLUXDB_ORG / INFLUXDB_BUCKET:
//     station telemetry sink (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: clarion-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
//
//	# Or via container
//	podman-compose up orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/ClarionAI/clarion/pkg/logging"
	"github.com/ClarionAI/clarion/services/orchestrator"
)

func main() {
	logger := logging.New(logging.Config{
		Service: "orchestrator",
		LogDir:  os.Getenv("CLARION_LOG_DIR"),
		JSON:    true,
	})
	defer func() {
		if err := logger.Close(); err != nil {
			slog.Warn("Logger close error", "error", err)
		}
	}()
	slog.SetDefault(logger.Slog())

	cfg := orchestrator.Config{
		Port:         getEnvInt("CLARION_PORT", 12210),
		LLMBackend:   os.Getenv("CLARION_LLM_BACKEND"),
		RulesPath:    os.Getenv("CLARION_RULES_PATH"),
		FeedbackDir:  os.Getenv("CLARION_FEEDBACK_DIR"),
		WarmModels:   getEnvBool("CLARION_WARM_MODELS", false),
		WeaviateURL:  os.Getenv("WEAVIATE_SERVICE_URL"),
		InfluxURL:    os.Getenv("INFLUXDB_URL"),
		InfluxToken:  os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:    os.Getenv("INFLUXDB_ORG"),
		InfluxBucket: os.Getenv("INFLUXDB_BUCKET"),
		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		GinMode:      os.Getenv("GIN_MODE"),
	}

	slog.Info("Starting orchestrator",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"rules_path", cfg.RulesPath,
	)

	// Create orchestrator with default (no-op) extension options.
	// Hosted builds pass custom ServiceOptions here.
	svc, err := orchestrator.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
