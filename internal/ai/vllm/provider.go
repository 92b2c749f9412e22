package vllm

import (
	"strings"

	"github.com/kiranshivaraju/explainer/internal/ai/openai"
	"github.com/kiranshivaraju/explainer/internal/config"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Provider implements models.AIProvider using vLLM's OpenAI-compatible
// server. Structured output uses vLLM's guided decoding behind the
// json_schema response format.
type Provider struct {
	*openai.Provider
}

func NewProvider(cfg config.VLLMConfig) *Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return &Provider{Provider: openai.NewCompatible("vllm", base, "", cfg.Model)}
}

var _ models.AIProvider = (*Provider)(nil)
