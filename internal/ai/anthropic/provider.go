package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/explainer/internal/config"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	apiVersion = "2023-06-01"
	maxTokens  = 8192
)

// Provider implements models.AIProvider using the Anthropic Messages API.
// PDF documents are sent as base64 document blocks so the model reads the
// original layout rather than extracted text.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "anthropic" }

type source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *source         `json:"source,omitempty"`
	Name   string          `json:"name,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type messagesRequest struct {
	Model      string      `json:"model"`
	MaxTokens  int         `json:"max_tokens"`
	System     string      `json:"system,omitempty"`
	Messages   []message   `json:"messages"`
	Tools      []tool      `json:"tools,omitempty"`
	ToolChoice *toolChoice `json:"tool_choice,omitempty"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateStructured forces a single tool call whose input schema is
// req.Schema and returns the tool input.
func (p *Provider) GenerateStructured(ctx context.Context, req models.GenerationRequest) ([]byte, error) {
	if len(req.Schema) == 0 {
		return nil, fmt.Errorf("%w: no schema supplied", models.ErrStructuredUnsupported)
	}
	name := req.SchemaName
	if name == "" {
		name = "record_result"
	}

	body := p.request(req)
	body.Tools = []tool{{
		Name:        name,
		Description: "Record the extracted result.",
		InputSchema: req.Schema,
	}}
	body.ToolChoice = &toolChoice{Type: "tool", Name: name}

	resp, err := p.send(ctx, body)
	if err != nil {
		return nil, err
	}
	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == name && len(block.Input) > 0 {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s tool call in response", models.ErrInvalidResponse, name)
}

func (p *Provider) GenerateText(ctx context.Context, req models.GenerationRequest) (string, error) {
	resp, err := p.send(ctx, p.request(req))
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrInvalidResponse)
	}
	return out.String(), nil
}

// request builds the user turn. PDFs travel as document blocks; anything
// else is inlined as text.
func (p *Provider) request(req models.GenerationRequest) messagesRequest {
	var content []contentBlock
	if req.Document.MediaType == "application/pdf" && len(req.Document.Data) > 0 {
		content = append(content,
			contentBlock{
				Type: "document",
				Source: &source{
					Type:      "base64",
					MediaType: "application/pdf",
					Data:      base64.StdEncoding.EncodeToString(req.Document.Data),
				},
			},
			contentBlock{Type: "text", Text: req.Prompt},
		)
	} else {
		content = append(content, contentBlock{Type: "text", Text: req.UserText()})
	}

	return messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: content}},
	}
}

func (p *Provider) send(ctx context.Context, body messagesRequest) (*messagesResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, raw)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", models.ErrInvalidResponse, err)
	}
	return &parsed, nil
}

func statusError(status int, body []byte) error {
	var parsed errorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	// 529 is Anthropic's overloaded status.
	if status == http.StatusTooManyRequests || status >= 500 ||
		status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: status %d: %s", models.ErrProviderUnavailable, status, msg)
	}
	return fmt.Errorf("%w: status %d: %s", models.ErrInvalidResponse, status, msg)
}

func classifyError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
