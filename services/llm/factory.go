package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NewClientFromEnv selects a generation backend from CLARION_LLM_BACKEND.
// Unset defaults to Ollama so a fresh checkout works without cloud keys.
func NewClientFromEnv() (LLMClient, error) {
	backend := strings.ToLower(os.Getenv("CLARION_LLM_BACKEND"))
	switch backend {
	case "", "ollama":
		return NewOllamaClient()
	case "openai":
		return NewOpenAIClient()
	case "anthropic":
		return NewAnthropicClient()
	default:
		slog.Error("Unknown LLM backend", "backend", backend)
		return nil, fmt.Errorf("unknown LLM backend %q (expected ollama, openai, or anthropic)", backend)
	}
}
