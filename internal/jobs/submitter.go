package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/explainer/internal/render"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Artifact is the input document handed to the render service.
type Artifact struct {
	Name    string
	Content []byte
}

// Submitter starts render jobs on the remote service.
type Submitter struct {
	client render.Client
	now    func() time.Time
}

// NewSubmitter creates a Submitter backed by client.
func NewSubmitter(client render.Client) *Submitter {
	return &Submitter{client: client, now: time.Now}
}

// Submit starts a render job for artifact at the given quality tier.
// An unrecognized quality returns ErrInvalidQuality without contacting the
// render service. Remote failures are returned as *SubmissionError.
func (s *Submitter) Submit(ctx context.Context, artifact Artifact, quality string) (models.Job, error) {
	q, err := models.ParseQuality(quality)
	if err != nil {
		return models.Job{}, fmt.Errorf("%w: %v", ErrInvalidQuality, err)
	}

	resp, err := s.client.Submit(ctx, render.SubmitRequest{
		Filename: artifact.Name,
		Content:  artifact.Content,
		Quality:  q,
	})
	if err != nil {
		return models.Job{}, &SubmissionError{Err: err}
	}

	status := resp.Status
	if !status.Valid() {
		status = models.JobStatusPending
	}

	job := models.Job{
		ID:        resp.JobID,
		Status:    status,
		Quality:   q,
		CreatedAt: s.now().UTC(),
		SourceRef: artifact.Name,
	}
	if job.SourceRef == "" {
		job.SourceRef = resp.FilePath
	}

	slog.Info("render job submitted", "job_id", job.ID, "quality", job.Quality, "status", job.Status)
	return job, nil
}
