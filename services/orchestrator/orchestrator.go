// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the core HTTP service for Clarion.
//
// This package contains the main service type that coordinates all
// components: detection and gating, the assembly-line rewrite
// pipeline, the feedback store, LLM clients, and observability
// infrastructure.
//
// # Enterprise Integration
//
// The orchestrator supports dependency injection via
// extensions.ServiceOptions, enabling hosted deployments to provide
// custom implementations of:
//   - AuthProvider: Custom authentication (JWT, API keys)
//   - AuditLogger: Compliance audit logging
//   - ContentFilter: PII detection and redaction
//
// # Usage
//
// Open source (uses no-op defaults):
//
//	cfg := orchestrator.Config{Port: 12210}
//	svc, err := orchestrator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ClarionAI/clarion/pkg/extensions"
	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/analysis/evidence"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/assembly"
	"github.com/ClarionAI/clarion/services/feedback"
	"github.com/ClarionAI/clarion/services/llm"
	"github.com/ClarionAI/clarion/services/orchestrator/observability"
	"github.com/ClarionAI/clarion/services/orchestrator/routes"
	"github.com/ClarionAI/clarion/services/ruleset"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify the route tree.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options. All fields have
// sensible defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// LLMBackend specifies the generation provider.
	// Valid values: "ollama", "openai", "claude", "anthropic".
	// Empty falls back to the CLARION_LLM_BACKEND env var, then Ollama.
	LLMBackend string

	// RulesPath points at a rule configuration YAML. Empty loads the
	// embedded defaults.
	RulesPath string

	// FeedbackDir is the BadgerDB directory for accept/reject
	// decisions. Default: "./data/feedback"
	FeedbackDir string

	// SnapshotInterval is how often the feedback snapshot rebuilds.
	// Default: 5 minutes
	SnapshotInterval time.Duration

	// WeaviateURL enables the feedback pattern mirror when set.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// InfluxURL enables station telemetry when set.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "clarion-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus /metrics endpoint.
	// Default: true
	EnableMetrics bool

	// WarmModels pre-loads Ollama models at startup so the first
	// rewrite does not pay the model load penalty.
	WarmModels bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use. Thread-safe after
// construction; all fields are read-only once New() returns.
type service struct {
	config Config
	opts   extensions.ServiceOptions
	router *gin.Engine

	llmClient llm.LLMClient
	analyzer  *analysis.Analyzer
	assembly  *assembly.Orchestrator
	telemetry *assembly.StationTelemetry

	store     *feedback.Store
	refresher *feedback.Refresher
	mirror    *feedback.Mirror

	metrics *observability.RewriteMetrics

	tracerCleanup   func(context.Context)
	refresherCancel context.CancelFunc
}

// New creates a new orchestrator Service with the given configuration.
//
// New initializes all components in dependency order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and Prometheus metrics
//  3. Loads the rule configuration (embedded or from RulesPath)
//  4. Opens the feedback store and starts the snapshot refresher
//  5. Creates the LLM client, rewrite backend, and optional validator
//  6. Builds the analyzer and assembly-line orchestrator
//  7. Sets up HTTP routes with extension options
//
// If opts is nil, DefaultOptions() is used (no-op implementations).
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Handlers record unconditionally, so reuse an already-registered
	// instance rather than tripping promauto's duplicate registration.
	s.metrics = observability.DefaultMetrics
	if s.metrics == nil {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the rewrite pipeline")
	}

	rules, err := s.loadRules()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to load rule configuration: %w", err)
	}

	if err := s.initFeedback(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize feedback store: %w", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.initPipeline(rules)

	if err := s.initMirror(); err != nil {
		// Mirroring is best-effort observability, not a hard
		// dependency.
		slog.Warn("Feedback mirror initialization failed", "error", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting orchestrator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.FeedbackDir == "" {
		cfg.FeedbackDir = "./data/feedback"
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = 5 * time.Minute
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "clarion-otel-collector:4317"
	}
	cfg.EnableMetrics = true
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing and
// metrics. Traces go to an OTLP gRPC collector, or to stdout when the
// endpoint is set to "stdout" for local debugging. The gRPC connection
// is insecure, which is appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	var traceExporter sdktrace.SpanExporter
	var err error
	if s.config.OTelEndpoint == "stdout" {
		traceExporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
	} else {
		conn, err := grpc.NewClient(s.config.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		traceExporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("clarion-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	// Bridge the otel metric API (used by the assembly pipeline) to
	// the default Prometheus registry so its instruments surface on
	// /metrics next to the native counters.
	metricExporter, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(metricExporter))
	otel.SetMeterProvider(meterProvider)

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown meter provider", "error", err)
		}
	}

	return cleanup, nil
}

// loadRules loads the rule configuration, preferring RulesPath over
// the embedded defaults.
func (s *service) loadRules() (*ruleset.Rules, error) {
	if s.config.RulesPath != "" {
		slog.Info("Loading rule configuration", "path", s.config.RulesPath)
		return ruleset.LoadFile(s.config.RulesPath)
	}
	return ruleset.Load()
}

// initFeedback opens the decision store and starts the background
// snapshot refresher.
func (s *service) initFeedback() error {
	store, err := feedback.OpenStore(feedback.DefaultStoreConfig(s.config.FeedbackDir))
	if err != nil {
		return err
	}
	s.store = store

	refresher, err := feedback.NewRefresher(store, s.config.SnapshotInterval, s.config.FeedbackDir, slog.Default())
	if err != nil {
		return err
	}
	s.refresher = refresher

	ctx, cancel := context.WithCancel(context.Background())
	s.refresherCancel = cancel
	go refresher.Run(ctx)

	slog.Info("Feedback store opened", "dir", s.config.FeedbackDir)
	return nil
}

// initLLMClient creates the generation client based on the configured
// backend type.
func (s *service) initLLMClient() error {
	var err error

	switch strings.ToLower(s.config.LLMBackend) {
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "claude", "anthropic":
		s.llmClient, err = llm.NewAnthropicClient()
		slog.Info("Using Anthropic (Claude) LLM backend")
	case "":
		s.llmClient, err = llm.NewClientFromEnv()
	default:
		return fmt.Errorf("unknown LLM backend %q", s.config.LLMBackend)
	}

	return err
}

// initPipeline builds the analysis and assembly components from the
// loaded rules.
func (s *service) initPipeline(rules *ruleset.Rules) {
	scorer := evidence.NewScorer(evidence.ScorerConfig{
		BaseOverrides:  rules.BaseOverrides,
		FeedbackWeight: rules.FeedbackWeight,
	})

	gateCfg := gate.Config{
		Threshold:         rules.Threshold,
		SeverityOverrides: rules.SeverityOverrides,
	}
	if rules.Validator.Enabled {
		gateCfg.Validator = llm.NewSecondOpinionValidator(s.llmClient)
		gateCfg.ValidatorTimeout = time.Duration(rules.Validator.TimeoutSeconds) * time.Second
		slog.Info("Second-opinion validator enabled",
			"timeout_seconds", rules.Validator.TimeoutSeconds)
	}

	s.analyzer = analysis.NewAnalyzer(analysis.AnalyzerConfig{
		Scorer:    scorer,
		Gate:      gate.New(gateCfg),
		Snapshots: s.refresher,
	})

	if s.config.InfluxURL != "" {
		s.telemetry = assembly.NewStationTelemetry(assembly.TelemetryConfig{
			URL:    s.config.InfluxURL,
			Token:  s.config.InfluxToken,
			Org:    s.config.InfluxOrg,
			Bucket: s.config.InfluxBucket,
		})
		slog.Info("Station telemetry enabled", "url", s.config.InfluxURL)
	}

	backend := llm.NewLLMRewriteBackend(s.llmClient, llm.LLMBackendConfig{})

	// Backend is non-nil, so New cannot fail here.
	s.assembly, _ = assembly.New(assembly.Config{
		Backend:   backend,
		Telemetry: s.telemetry,
	})

	if s.config.WarmModels {
		s.warmModels()
	}
}

// warmModels pre-loads Ollama models in the background so startup does
// not block on model pulls.
func (s *service) warmModels() {
	baseURL := "http://localhost:11434"
	if v := s.config.LLMBackend; v != "" && v != "ollama" {
		slog.Info("Model warmup skipped for non-Ollama backend", "backend", v)
		return
	}
	warmer := llm.NewModelWarmer(baseURL, slog.Default())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := warmer.WarmAll(ctx, []llm.WarmupConfig{
			{Model: "granite4:micro-h", KeepAlive: "-1", Priority: 2, NumCtx: 8192},
		}); err != nil {
			slog.Warn("Model warmup failed", "error", err)
		}
	}()
}

// initMirror connects the feedback pattern mirror when Weaviate is
// configured.
func (s *service) initMirror() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")
	if weaviateURL == "" {
		slog.Info("Weaviate URL not configured, feedback mirroring disabled")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	s.mirror = feedback.NewMirror(client, slog.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.mirror.EnsureSchema(ctx); err != nil {
		s.mirror = nil
		return err
	}

	// Push aggregated patterns alongside each snapshot rebuild.
	go s.mirrorLoop()

	slog.Info("Feedback mirror initialized", "url", weaviateURL)
	return nil
}

// mirrorLoop periodically pushes the current feedback snapshot to
// Weaviate. Runs until the refresher context is cancelled.
func (s *service) mirrorLoop() {
	ticker := time.NewTicker(s.config.SnapshotInterval)
	defer ticker.Stop()
	for range ticker.C {
		if s.mirror == nil || s.refresher == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pushed := s.mirror.Push(ctx, s.refresher.Current())
		cancel()
		if pushed > 0 {
			slog.Debug("Mirrored feedback patterns", "count", pushed)
		}
	}
}

// initRouter sets up the Gin HTTP router with all routes and
// middleware.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("clarion-orchestrator"))

	routes.SetupRoutes(s.router, routes.Deps{
		Analyzer:  s.analyzer,
		Assembly:  s.assembly,
		Store:     s.store,
		Refresher: s.refresher,
		Options:   s.opts,
		Metrics:   s.metrics,
	})
}

// cleanup releases all resources held by the service. Called when
// Run() exits or on initialization failure.
func (s *service) cleanup() {
	if s.refresherCancel != nil {
		s.refresherCancel()
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Feedback store close error", "error", err)
		}
	}

	if s.telemetry != nil {
		s.telemetry.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.opts.AuditLogger.Flush(ctx); err != nil {
		slog.Warn("Audit logger flush error", "error", err)
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
