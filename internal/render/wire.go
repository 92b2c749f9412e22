package render

import (
	"strings"
	"time"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// wireJob is a job record as the render service stores it.
type wireJob struct {
	JobID            string `json:"job_id"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	CompletedAt      string `json:"completed_at"`
	Error            string `json:"error"`
	VideoPath        string `json:"video_path"`
	PDFPath          string `json:"pdf_path"`
	Quality          string `json:"quality"`
	OriginalFilename string `json:"original_filename"`
}

func (w wireJob) toModel() models.Job {
	job := models.Job{
		ID:        w.JobID,
		Status:    models.JobStatus(w.Status),
		SourceRef: w.OriginalFilename,
		Error:     w.Error,
		VideoPath: w.VideoPath,
	}
	if job.SourceRef == "" {
		job.SourceRef = w.PDFPath
	}
	if q, err := models.ParseQuality(w.Quality); err == nil {
		job.Quality = q
	}
	if t, ok := parseTimestamp(w.CreatedAt); ok {
		job.CreatedAt = t
	}
	if t, ok := parseTimestamp(w.CompletedAt); ok {
		job.CompletedAt = &t
	}
	return job
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts RFC 3339 and zone-less ISO-8601 values. Zone-less
// values are read as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
