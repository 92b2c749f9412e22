package ai

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/explainer/internal/ai/anthropic"
	"github.com/kiranshivaraju/explainer/internal/ai/mock"
	"github.com/kiranshivaraju/explainer/internal/ai/ollama"
	"github.com/kiranshivaraju/explainer/internal/ai/openai"
	"github.com/kiranshivaraju/explainer/internal/ai/vllm"
	"github.com/kiranshivaraju/explainer/internal/config"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Pinger is implemented by providers that can check their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic, mock", cfg.Provider)
	}
}
