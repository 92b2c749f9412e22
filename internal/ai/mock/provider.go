package mock

import (
	"context"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_                  string
	GenerateStructuredFunc func(ctx context.Context, req models.GenerationRequest) ([]byte, error)
	GenerateTextFunc       func(ctx context.Context, req models.GenerationRequest) (string, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) GenerateStructured(ctx context.Context, req models.GenerationRequest) ([]byte, error) {
	if m.GenerateStructuredFunc != nil {
		return m.GenerateStructuredFunc(ctx, req)
	}
	return nil, models.ErrStructuredUnsupported
}

func (m *MockProvider) GenerateText(ctx context.Context, req models.GenerationRequest) (string, error) {
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, req)
	}
	return "", nil
}

// SampleJSON is a well-formed result with three concepts and four questions.
const SampleJSON = `{
  "concepts": [
    {"title": "Attention", "summary": "Tokens weigh each other by learned relevance.", "citations": ["attention is all you need"], "importance": "Core mechanism of the model"},
    {"title": "Positional Encoding", "summary": "Order is injected with sinusoidal signals.", "citations": [], "importance": "Restores sequence order"},
    {"title": "Multi-Head Attention", "summary": "Several attention maps run in parallel.", "citations": [], "importance": "Captures different relations"}
  ],
  "questions": [
    {"question": "What does attention compute?", "options": ["Relevance weights", "Gradients", "Token ids", "Loss"], "correctAnswer": 0, "concept": "Attention"},
    {"question": "Why add positional encodings?", "options": ["Speed", "Order", "Memory", "Sparsity"], "correctAnswer": 1, "concept": "Positional Encoding"},
    {"question": "How many attention maps does multi-head attention use?", "options": ["None", "One", "Several", "Exactly two"], "correctAnswer": 2, "concept": "Multi-Head Attention"},
    {"question": "Which component is central to the model?", "options": ["Convolution", "Recurrence", "Pooling", "Attention"], "correctAnswer": 3, "concept": "Attention"}
  ]
}`

// NewMockProvider returns a MockProvider that answers both generation modes
// with SampleJSON.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateStructuredFunc: func(_ context.Context, _ models.GenerationRequest) ([]byte, error) {
			return []byte(SampleJSON), nil
		},
		GenerateTextFunc: func(_ context.Context, _ models.GenerationRequest) (string, error) {
			return "Here is the analysis:\n```json\n" + SampleJSON + "\n```\n", nil
		},
	}
}

// NewTextProvider returns a MockProvider without structured output that
// answers free-form requests with text.
func NewTextProvider(text string) *MockProvider {
	return &MockProvider{
		Name_: "mock-text",
		GenerateTextFunc: func(_ context.Context, _ models.GenerationRequest) (string, error) {
			return text, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateStructuredFunc: func(_ context.Context, _ models.GenerationRequest) ([]byte, error) {
			return nil, err
		},
		GenerateTextFunc: func(_ context.Context, _ models.GenerationRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateStructuredFunc: func(ctx context.Context, _ models.GenerationRequest) ([]byte, error) {
			<-ctx.Done()
			return nil, models.ErrInferenceTimeout
		},
		GenerateTextFunc: func(ctx context.Context, _ models.GenerationRequest) (string, error) {
			<-ctx.Done()
			return "", models.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
