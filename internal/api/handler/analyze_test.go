package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/kiranshivaraju/explainer/internal/ai/mock"
	"github.com/kiranshivaraju/explainer/internal/analysis"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	got models.Document
}

func (s *stubAnalyzer) Analyze(_ context.Context, doc models.Document) (models.AnalysisResult, analysis.Report) {
	s.got = doc
	return analysis.Fallback(), analysis.Report{Source: analysis.SourceFallback}
}

func TestAnalyze_StrictResult(t *testing.T) {
	h := NewAnalyzeHandler(analysis.NewPipeline(mock.NewMockProvider()), 0)

	w := serve(h, multipartRequest(t, "/api/v1/analyze", "notes.txt", []byte("Attention is all you need."), nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeData[analyzeResponse](t, w)
	assert.Equal(t, analysis.SourceStrict, got.Source)
	assert.False(t, got.Degraded)
	assert.Equal(t, "Attention", got.Concepts[0].Title)
	assert.Len(t, got.Questions, 4)
}

func TestAnalyze_FallbackIsDegraded(t *testing.T) {
	provider := mock.NewFailingProvider(models.ErrProviderUnavailable)
	h := NewAnalyzeHandler(analysis.NewPipeline(provider), 0)

	w := serve(h, multipartRequest(t, "/api/v1/analyze", "notes.txt", []byte("some text"), nil))

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[analyzeResponse](t, w)
	assert.True(t, got.Degraded)
	assert.Equal(t, analysis.SourceFallback, got.Source)
	assert.Equal(t, models.FallbackTitle, got.Concepts[0].Title)
}

func TestAnalyze_PassesDocument(t *testing.T) {
	stub := &stubAnalyzer{}
	h := NewAnalyzeHandler(stub, 0)

	w := serve(h, multipartRequest(t, "/api/v1/analyze", "dir/paper.pdf", []byte("%PDF-1.4 body"), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paper.pdf", stub.got.Name)
	assert.Equal(t, "application/pdf", stub.got.MediaType)
	assert.Equal(t, []byte("%PDF-1.4 body"), stub.got.Data)
}

func TestAnalyze_MissingFile(t *testing.T) {
	h := NewAnalyzeHandler(&stubAnalyzer{}, 0)

	w := serve(h, multipartRequest(t, "/api/v1/analyze", "", nil, map[string]string{"note": "x"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
}

func TestAnalyze_EmptyFile(t *testing.T) {
	h := NewAnalyzeHandler(&stubAnalyzer{}, 0)

	w := serve(h, multipartRequest(t, "/api/v1/analyze", "empty.pdf", []byte{}, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
}
