package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any text-generation backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// float32Ptr is a convenience for building GenerationParams literals.
func float32Ptr(v float32) *float32 { return &v }

// intPtr is a convenience for building GenerationParams literals.
func intPtr(v int) *int { return &v }
