package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/explainer/internal/config"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/ollama/ollama/api"
)

// Provider implements models.AIProvider using Ollama.
type Provider struct {
	cfg    config.OllamaConfig
	client *api.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		base = &url.URL{Scheme: "http", Host: "localhost:11434"}
	}
	return &Provider{cfg: cfg, client: api.NewClient(base, http.DefaultClient)}
}

func (p *Provider) Name() string { return "ollama" }

// GenerateStructured passes req.Schema as the chat format, which makes
// Ollama constrain decoding to the schema.
func (p *Provider) GenerateStructured(ctx context.Context, req models.GenerationRequest) ([]byte, error) {
	format := req.Schema
	if len(format) == 0 {
		format = json.RawMessage(`"json"`)
	}
	out, err := p.chat(ctx, req, format)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (p *Provider) GenerateText(ctx context.Context, req models.GenerationRequest) (string, error) {
	return p.chat(ctx, req, nil)
}

// Ping checks that the Ollama server is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return classifyError(ctx, err)
	}
	return nil
}

func (p *Provider) chat(ctx context.Context, req models.GenerationRequest, format json.RawMessage) (string, error) {
	stream := false
	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.UserText()})

	chatReq := &api.ChatRequest{
		Model:    p.cfg.Model,
		Messages: messages,
		Stream:   &stream,
		Format:   format,
		Options:  map[string]any{"temperature": 0},
	}

	var out strings.Builder
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classifyError(ctx, err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("%w: empty response from %s", models.ErrInvalidResponse, p.cfg.Model)
	}
	return out.String(), nil
}

func classifyError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
