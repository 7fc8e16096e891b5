package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("clarion.llm.ollama")

// OllamaClient serves local models through an Ollama server. It is the
// default backend for air-gapped deployments where text never leaves
// the host.
type OllamaClient struct {
	model *ollama.LLM
	name  string
}

// NewOllamaClient connects to the server named by OLLAMA_BASE_URL and
// binds OLLAMA_MODEL (falling back to a local default server and
// warning when the model is unset).
func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	name := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if name == "" {
		slog.Warn("OLLAMA_MODEL not set, defaulting", "default_model", "gpt-oss")
		name = "gpt-oss"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", name)
	model, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(name),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Ollama client for %s: %w", baseURL, err)
	}
	return &OllamaClient{model: model, name: name}, nil
}

// Generate implements the LLMClient interface.
func (o *OllamaClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.name))
	slog.Debug("Generating text via Ollama", "model", o.name)

	opts := []llms.CallOption{}
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	} else {
		opts = append(opts, llms.WithTemperature(0.2))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	} else {
		opts = append(opts, llms.WithTopP(0.9))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	} else {
		opts = append(opts, llms.WithMaxTokens(8192))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, o.model, prompt, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Ollama generation failed", "model", o.name, "error", err)
		if strings.Contains(err.Error(), "not found") {
			return "", fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", o.name, o.name)
		}
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	slog.Debug("Received response from Ollama")
	return out, nil
}

// ModelName reports the bound model, for logging and telemetry tags.
func (o *OllamaClient) ModelName() string {
	return o.name
}
