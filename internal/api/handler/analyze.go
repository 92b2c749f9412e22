package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/explainer/internal/analysis"
	"github.com/kiranshivaraju/explainer/internal/api/response"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Analyzer turns a document into a structured summary. It always returns a
// usable result; the report says which path produced it.
type Analyzer interface {
	Analyze(ctx context.Context, doc models.Document) (models.AnalysisResult, analysis.Report)
}

type analyzeResponse struct {
	Concepts  []models.Concept      `json:"concepts"`
	Questions []models.QuizQuestion `json:"questions"`
	Source    string                `json:"source"`
	Degraded  bool                  `json:"degraded"`
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/analyze.
func NewAnalyzeHandler(a Analyzer, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, err := readUpload(w, r, "file", maxUploadBytes)
		if err != nil {
			writeUploadError(w, err)
			return
		}

		// Inference can outlast the server's write timeout.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		result, report := a.Analyze(r.Context(), models.Document{
			Name:      up.Name,
			MediaType: up.ContentType,
			Data:      up.Data,
		})
		if report.Degraded() {
			slog.Warn("analysis degraded to fallback", "document", up.Name, "attempts", len(report.Attempts))
		}

		response.JSON(w, analyzeResponse{
			Concepts:  result.Concepts,
			Questions: result.Questions,
			Source:    report.Source,
			Degraded:  report.Degraded(),
		})
	}
}
