// Package models contains shared data models used across the explainer codebase.
package models

import (
	"context"
	"encoding/json"
	"errors"
)

// Sentinel errors returned by AIProvider implementations.
var (
	ErrProviderUnavailable   = errors.New("ai provider unavailable")
	ErrInferenceTimeout      = errors.New("ai inference timeout")
	ErrInvalidResponse       = errors.New("ai provider returned invalid response")
	ErrStructuredUnsupported = errors.New("ai provider does not support structured output")
)

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// GenerateStructured asks the model for output constrained to req.Schema
	// and returns the raw JSON it produced.
	GenerateStructured(ctx context.Context, req GenerationRequest) ([]byte, error)
	// GenerateText asks the model for free-form text.
	GenerateText(ctx context.Context, req GenerationRequest) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// GenerationRequest is the input to a single generation call.
type GenerationRequest struct {
	System     string
	Prompt     string
	Document   Document
	SchemaName string
	Schema     json.RawMessage
}

// Document is an uploaded input artifact. Text holds the extracted plain
// text for providers that cannot read Data directly.
type Document struct {
	Name      string
	MediaType string
	Data      []byte
	Text      string
}

// UserText is the prompt followed by the document text, for providers that
// only accept text input.
func (r GenerationRequest) UserText() string {
	if r.Document.Text == "" {
		return r.Prompt
	}
	return r.Prompt + "\n\n<document name=\"" + r.Document.Name + "\">\n" + r.Document.Text + "\n</document>"
}
