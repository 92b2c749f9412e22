package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/explainer/internal/ai/mock"
	"github.com/kiranshivaraju/explainer/internal/cache"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textDoc() models.Document {
	return models.Document{Name: "notes.txt", MediaType: "text/plain", Data: []byte("Attention is all you need.")}
}

func TestPipeline_StrictPath(t *testing.T) {
	p := NewPipeline(mock.NewMockProvider())

	result, report := p.Analyze(context.Background(), textDoc())

	assert.Equal(t, SourceStrict, report.Source)
	assert.False(t, report.Degraded())
	assert.Equal(t, "Attention", result.Concepts[0].Title)
	require.Len(t, report.Attempts, 1)
	assert.Equal(t, 1, report.Attempts[0].Tries)
}

func TestPipeline_StrictRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	provider := &mock.MockProvider{
		Name_: "flaky",
		GenerateStructuredFunc: func(context.Context, models.GenerationRequest) ([]byte, error) {
			if calls.Add(1) == 1 {
				return []byte(payload(2, 4)), nil
			}
			return []byte(mock.SampleJSON), nil
		},
	}
	p := NewPipeline(provider, WithStrictAttempts(2))

	_, report := p.Analyze(context.Background(), textDoc())

	assert.Equal(t, SourceStrict, report.Source)
	assert.Equal(t, 2, report.Attempts[0].Tries)
}

func TestPipeline_StrictExhaustedFallsToLenient(t *testing.T) {
	var structured atomic.Int32
	provider := &mock.MockProvider{
		Name_: "loose",
		GenerateStructuredFunc: func(context.Context, models.GenerationRequest) ([]byte, error) {
			structured.Add(1)
			return []byte(`{"concepts": []}`), nil
		},
		GenerateTextFunc: func(context.Context, models.GenerationRequest) (string, error) {
			return repairPayload, nil
		},
	}
	p := NewPipeline(provider, WithStrictAttempts(2))

	result, report := p.Analyze(context.Background(), textDoc())

	assert.Equal(t, int32(2), structured.Load())
	assert.Equal(t, SourceLenient, report.Source)
	require.Len(t, report.Attempts, 2)
	assert.Equal(t, FailureSchema, report.Attempts[0].Failure.Kind)
	assert.Equal(t, 0, result.Questions[0].CorrectAnswer)
}

func TestPipeline_StructuredUnsupportedSkipsRetries(t *testing.T) {
	var structured atomic.Int32
	provider := &mock.MockProvider{
		Name_: "text-only",
		GenerateStructuredFunc: func(context.Context, models.GenerationRequest) ([]byte, error) {
			structured.Add(1)
			return nil, models.ErrStructuredUnsupported
		},
		GenerateTextFunc: func(context.Context, models.GenerationRequest) (string, error) {
			return mock.SampleJSON, nil
		},
	}
	p := NewPipeline(provider, WithStrictAttempts(3))

	_, report := p.Analyze(context.Background(), textDoc())

	assert.Equal(t, int32(1), structured.Load())
	assert.Equal(t, FailureUnavailable, report.Attempts[0].Failure.Kind)
	assert.Equal(t, SourceLenient, report.Source)
}

func TestPipeline_ZeroStrictAttemptsGoesLenient(t *testing.T) {
	p := NewPipeline(mock.NewTextProvider(mock.SampleJSON), WithStrictAttempts(0))

	_, report := p.Analyze(context.Background(), textDoc())

	assert.Equal(t, SourceLenient, report.Source)
	assert.Equal(t, FailureUnavailable, report.Attempts[0].Failure.Kind)
}

func TestPipeline_TooFewConceptsServesFallback(t *testing.T) {
	p := NewPipeline(mock.NewTextProvider("```json\n"+payload(2, 4)+"\n```"))

	result, report := p.Analyze(context.Background(), textDoc())

	assert.True(t, report.Degraded())
	assert.True(t, result.IsFallback())
	assert.Equal(t, models.FallbackTitle, result.Concepts[0].Title)
	require.Len(t, report.Attempts, 2)
	assert.Equal(t, FailureBounds, report.Attempts[1].Failure.Kind)
}

func TestPipeline_ProviderDownServesFallback(t *testing.T) {
	p := NewPipeline(mock.NewFailingProvider(models.ErrProviderUnavailable))

	result, report := p.Analyze(context.Background(), textDoc())

	assert.True(t, report.Degraded())
	assertValid(t, result, MaxConcepts)
	for _, a := range report.Attempts {
		assert.Equal(t, FailureUnavailable, a.Failure.Kind)
	}
}

func TestPipeline_TimeoutServesFallback(t *testing.T) {
	p := NewPipeline(mock.NewTimeoutProvider(), WithInferenceTimeout(10*time.Millisecond))

	start := time.Now()
	result, report := p.Analyze(context.Background(), textDoc())

	assert.True(t, report.Degraded())
	assert.True(t, result.IsFallback())
	assert.Less(t, time.Since(start), 2*time.Second)
	for _, a := range report.Attempts {
		assert.ErrorIs(t, a.Failure, models.ErrInferenceTimeout)
	}
}

func TestPipeline_CancelledContextServesFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(mock.NewMockProvider())

	result, report := p.Analyze(ctx, textDoc())

	assert.True(t, result.IsFallback())
	assert.Empty(t, report.Attempts)
}

func TestPipeline_CachesGenuineResults(t *testing.T) {
	var calls atomic.Int32
	provider := mock.NewMockProvider()
	inner := provider.GenerateStructuredFunc
	provider.GenerateStructuredFunc = func(ctx context.Context, req models.GenerationRequest) ([]byte, error) {
		calls.Add(1)
		return inner(ctx, req)
	}
	p := NewPipeline(provider, WithCache(cache.NewMemoryCache(), time.Hour))

	first, _ := p.Analyze(context.Background(), textDoc())
	second, report := p.Analyze(context.Background(), textDoc())

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, SourceCache, report.Source)
	assert.Equal(t, first, second)
}

func TestPipeline_DoesNotCacheFallback(t *testing.T) {
	var calls atomic.Int32
	provider := &mock.MockProvider{
		Name_: "down",
		GenerateTextFunc: func(context.Context, models.GenerationRequest) (string, error) {
			calls.Add(1)
			return "", errors.New("boom")
		},
	}
	p := NewPipeline(provider, WithCache(cache.NewMemoryCache(), time.Hour))

	p.Analyze(context.Background(), textDoc())
	_, report := p.Analyze(context.Background(), textDoc())

	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, report.Degraded())
}

func TestPipeline_PassesTruncatedText(t *testing.T) {
	var got models.GenerationRequest
	provider := &mock.MockProvider{
		Name_: "capture",
		GenerateStructuredFunc: func(_ context.Context, req models.GenerationRequest) ([]byte, error) {
			got = req
			return []byte(mock.SampleJSON), nil
		},
	}
	p := NewPipeline(provider, WithMaxDocumentChars(9))

	p.Analyze(context.Background(), textDoc())

	assert.Equal(t, "Attention", got.Document.Text)
	assert.Equal(t, SchemaName, got.SchemaName)
	assert.NotEmpty(t, got.Schema)
	assert.NotEmpty(t, got.Prompt)
}

type stubStrategy struct {
	name    string
	attempt Attempt
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(context.Context, models.Document) Attempt {
	s.calls++
	return s.attempt
}

func TestPipeline_StopsAtFirstSuccess(t *testing.T) {
	good := &stubStrategy{name: "first", attempt: Attempt{Strategy: "first", Result: Fallback()}}
	never := &stubStrategy{name: "second"}
	p := NewPipeline(mock.NewMockProvider(), WithStrategies(good, never))

	_, report := p.Analyze(context.Background(), textDoc())

	assert.Equal(t, "first", report.Source)
	assert.Zero(t, never.calls)
}

func TestPipeline_EveryPathWithinBounds(t *testing.T) {
	providers := map[string]models.AIProvider{
		"strict":   mock.NewMockProvider(),
		"lenient":  mock.NewTextProvider(payload(11, 20)),
		"fallback": mock.NewFailingProvider(errors.New("down")),
	}
	for name, provider := range providers {
		t.Run(name, func(t *testing.T) {
			result, report := NewPipeline(provider).Analyze(context.Background(), textDoc())
			assert.Equal(t, name, report.Source)
			assertValid(t, result, MaxConcepts)
			assert.GreaterOrEqual(t, len(result.Questions), MinQuestions)
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0))
}

func TestExtractText_RejectsNonPDF(t *testing.T) {
	_, err := ExtractText([]byte("plain text"))
	assert.Error(t, err)
}

func TestPipeline_UnreadablePDFStillAnalyzed(t *testing.T) {
	doc := models.Document{Name: "broken.pdf", Data: []byte("%PDF-1.4 truncated")}
	var got models.GenerationRequest
	provider := &mock.MockProvider{
		Name_: "capture",
		GenerateStructuredFunc: func(_ context.Context, req models.GenerationRequest) ([]byte, error) {
			got = req
			return []byte(mock.SampleJSON), nil
		},
	}

	_, report := NewPipeline(provider).Analyze(context.Background(), doc)

	assert.Equal(t, SourceStrict, report.Source)
	assert.Equal(t, "application/pdf", got.Document.MediaType)
	assert.Empty(t, got.Document.Text)
}
