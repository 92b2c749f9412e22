package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/explainer/internal/api/response"
	"github.com/kiranshivaraju/explainer/internal/jobs"
	"github.com/kiranshivaraju/explainer/internal/render"
)

// writeJobError maps job and render service errors to API errors.
func writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	var submitErr *jobs.SubmissionError
	switch {
	case errors.Is(err, jobs.ErrInvalidQuality):
		response.Error(w, http.StatusBadRequest, "INVALID_QUALITY", err.Error(), nil)
	case errors.As(err, &submitErr):
		response.Error(w, http.StatusBadGateway, "SUBMISSION_FAILED",
			"The render service did not accept the job", nil)
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, render.ErrJobNotFound):
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
	case errors.Is(err, jobs.ErrNotReady), errors.Is(err, render.ErrJobNotReady):
		response.Error(w, http.StatusConflict, "JOB_NOT_READY", "Job has not completed", nil)
	case errors.Is(err, render.ErrRenderTimeout):
		response.Error(w, http.StatusGatewayTimeout, "RENDER_TIMEOUT",
			"The render service took too long to respond", nil)
	case errors.Is(err, render.ErrRenderUnreachable):
		response.Error(w, http.StatusBadGateway, "RENDER_UNAVAILABLE",
			"The render service is not available", nil)
	case errors.Is(err, render.ErrRenderRejected):
		response.Error(w, http.StatusBadGateway, "RENDER_REJECTED",
			"The render service rejected the request", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
