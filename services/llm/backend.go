package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ClarionAI/clarion/services/analysis/route"
)

// Outcome tags a rewrite attempt. A station either applied at least one
// fix, decided the text needed no change, or failed outright. Callers
// must branch on the tag rather than inspecting RevisedText for
// emptiness.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeNoChange Outcome = "no_change"
	OutcomeFailed   Outcome = "failed"
)

// RewriteResult is the tagged result of one station rewrite.
//
// RevisedText and FixedCount are meaningful only when Outcome is
// OutcomeApplied. Confidence is the backend's self-reported confidence
// in [0,1] for applied rewrites and zero otherwise. Reason carries the
// failure cause for OutcomeFailed and is advisory elsewhere.
type RewriteResult struct {
	Outcome     Outcome
	RevisedText string
	FixedCount  int
	Confidence  float64
	Reason      string
}

// RewriteBackend performs the contextual rewrite for one station.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the orchestrator
// runs independent blocks in parallel against a shared backend.
type RewriteBackend interface {
	// Rewrite revises text to address the station's violations. It
	// returns OutcomeFailed only for transport or generation errors;
	// a backend that answers "nothing to change" returns
	// OutcomeNoChange with the original text untouched.
	Rewrite(ctx context.Context, station route.Station, text string) (RewriteResult, error)
}

// stationResponse is the JSON envelope backends are prompted to emit.
type stationResponse struct {
	RevisedText string  `json:"revised_text"`
	FixedCount  int     `json:"fixed_count"`
	Confidence  float64 `json:"confidence"`
}

// LLMBackendConfig tunes the shared LLM rewrite backend.
type LLMBackendConfig struct {
	// RequestsPerSecond caps outbound generation calls. Zero means
	// 4 rps with a burst of 8.
	RequestsPerSecond float64
	Burst             int

	// MaxInFlight bounds concurrent generations. Zero means 8.
	MaxInFlight int64

	// RequestTimeout bounds a single generation. Zero means 45s.
	RequestTimeout time.Duration

	MaxTokens int
	Logger    *slog.Logger
}

// LLMRewriteBackend adapts any LLMClient into a RewriteBackend. It
// rate-limits and bounds concurrency so a burst of parallel blocks
// cannot stampede the model server.
type LLMRewriteBackend struct {
	client  LLMClient
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	timeout time.Duration
	tokens  int
	logger  *slog.Logger
}

// NewLLMRewriteBackend wraps client with rate and concurrency limits.
func NewLLMRewriteBackend(client LLMClient, cfg LLMBackendConfig) *LLMRewriteBackend {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 8
	}
	inflight := cfg.MaxInFlight
	if inflight <= 0 {
		inflight = 8
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	tokens := cfg.MaxTokens
	if tokens <= 0 {
		tokens = 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMRewriteBackend{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		sem:     semaphore.NewWeighted(inflight),
		timeout: timeout,
		tokens:  tokens,
		logger:  logger,
	}
}

// Rewrite implements RewriteBackend.
//
// Generation errors and unusable transports surface as OutcomeFailed.
// A response that parses but changes nothing, or that cannot be parsed
// at all, degrades to OutcomeNoChange: an unreadable answer is treated
// as the model declining to edit, never as a destructive rewrite.
func (b *LLMRewriteBackend) Rewrite(ctx context.Context, station route.Station, text string) (RewriteResult, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return failed(fmt.Sprintf("rate limiter: %v", err)), nil
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return failed(fmt.Sprintf("concurrency gate: %v", err)), nil
	}
	defer b.sem.Release(1)

	genCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	prompt := BuildStationPrompt(station, text)
	raw, err := b.client.Generate(genCtx, prompt, GenerationParams{
		Temperature: float32Ptr(0.0),
		TopP:        float32Ptr(1.0),
		MaxTokens:   intPtr(b.tokens),
	})
	if err != nil {
		b.logger.Warn("station rewrite generation failed",
			"station", station.Name,
			"error", err)
		return failed(err.Error()), nil
	}

	resp, ok := parseStationResponse(raw)
	if !ok {
		b.logger.Warn("station rewrite response unparseable, keeping original text",
			"station", station.Name)
		return RewriteResult{Outcome: OutcomeNoChange, RevisedText: text, Reason: "unparseable response"}, nil
	}
	if resp.RevisedText == "" || resp.RevisedText == text || resp.FixedCount <= 0 {
		return RewriteResult{Outcome: OutcomeNoChange, RevisedText: text}, nil
	}
	conf := resp.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return RewriteResult{
		Outcome:     OutcomeApplied,
		RevisedText: resp.RevisedText,
		FixedCount:  resp.FixedCount,
		Confidence:  conf,
	}, nil
}

func failed(reason string) RewriteResult {
	return RewriteResult{Outcome: OutcomeFailed, Reason: reason}
}

// parseStationResponse digs the JSON envelope out of a model answer,
// tolerating markdown fences and leading prose.
func parseStationResponse(raw string) (stationResponse, bool) {
	var resp stationResponse
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return resp, false
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &resp); err != nil {
		return resp, false
	}
	return resp, true
}
