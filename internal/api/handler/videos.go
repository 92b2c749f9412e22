package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/explainer/internal/api/response"
	"github.com/kiranshivaraju/explainer/internal/jobs"
	"github.com/kiranshivaraju/explainer/internal/render"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// JobService is the subset of jobs.Manager the video handlers use.
type JobService interface {
	Submit(ctx context.Context, artifact jobs.Artifact, quality string) (models.Job, error)
	Get(ctx context.Context, id string) (models.Job, error)
	List(ctx context.Context) ([]models.Job, error)
	Refresh(ctx context.Context) ([]models.Job, error)
	Delete(ctx context.Context, id string) error
	Download(ctx context.Context, id string) (*render.Artifact, error)
}

// NewSubmitVideoHandler returns an http.HandlerFunc for POST /api/v1/videos.
func NewSubmitVideoHandler(svc JobService, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, err := readUpload(w, r, "file", maxUploadBytes)
		if err != nil {
			writeUploadError(w, err)
			return
		}

		quality := r.FormValue("quality")
		if quality == "" {
			quality = string(models.QualityMedium)
		}

		job, err := svc.Submit(r.Context(), jobs.Artifact{Name: up.Name, Content: up.Data}, quality)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.Accepted(w, job)
	}
}

// NewListVideosHandler returns an http.HandlerFunc for GET /api/v1/videos.
// ?refresh=true re-fetches the list from the render service.
func NewListVideosHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, ok := parsePage(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page and limit must be positive integers", nil)
			return
		}

		var (
			list []models.Job
			err  error
		)
		if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
			list, err = svc.Refresh(r.Context())
		} else {
			list, err = svc.List(r.Context())
		}
		if err != nil {
			writeJobError(w, r, err)
			return
		}

		response.Page(w, list, page, limit)
	}
}

// NewGetVideoHandler returns an http.HandlerFunc for GET /api/v1/videos/{jobID}.
func NewGetVideoHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := svc.Get(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewDeleteVideoHandler returns an http.HandlerFunc for DELETE /api/v1/videos/{jobID}.
func NewDeleteVideoHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "jobID")); err != nil {
			writeJobError(w, r, err)
			return
		}
		response.NoContent(w)
	}
}

// NewDownloadVideoHandler returns an http.HandlerFunc for
// GET /api/v1/videos/{jobID}/download. The artifact is streamed through.
func NewDownloadVideoHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		art, err := svc.Download(r.Context(), id)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		defer art.Body.Close()

		contentType := art.ContentType
		if contentType == "" {
			contentType = "video/mp4"
		}
		filename := art.Filename
		if filename == "" {
			filename = id + ".mp4"
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		if art.ContentLength > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(art.ContentLength, 10))
		}
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
		w.WriteHeader(http.StatusOK)

		if n, err := io.Copy(w, art.Body); err != nil {
			slog.Warn("artifact stream interrupted", "job_id", id, "bytes", n, "error", err)
		}
	}
}

func parsePage(r *http.Request) (page, limit int, ok bool) {
	page, limit = 1, defaultPageLimit
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		limit = min(n, maxPageLimit)
	}
	return page, limit, true
}
