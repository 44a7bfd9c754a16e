// Package insight asks a language model to comment on a backtest result.
package insight

import (
	"context"
	"fmt"

	"github.com/newthinker/investeai/internal/config"
)

// Completer turns a system prompt and a user prompt into text.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request holds the completion parameters
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response holds the completion text and token usage
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return 1024
	}
	return r.MaxTokens
}

// NewCompleter creates a Completer based on configuration.
func NewCompleter(cfg config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case "claude":
		return NewClaude(cfg.Claude.APIKey, cfg.Claude.Model, cfg.Claude.BaseURL)
	case "openai":
		return NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case "ollama":
		return NewOllama(cfg.Ollama.Endpoint, cfg.Ollama.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
