package jobs

import (
	"time"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Advance folds a freshly fetched snapshot into the current one and reports
// whether anything changed. Status only moves forward along
// pending < processing < {completed, failed}; once terminal the job is
// frozen. Quality, CreatedAt and SourceRef keep the values recorded at
// submission. now stamps CompletedAt when the remote did not supply one.
func Advance(cur, next models.Job, now time.Time) (models.Job, bool) {
	if cur.ID != "" && next.ID != "" && next.ID != cur.ID {
		return cur, false
	}
	if !next.Status.Valid() || cur.Terminal() {
		return cur, false
	}
	if next.Status.Rank() < cur.Status.Rank() {
		return cur, false
	}

	out := cur
	if out.ID == "" {
		out.ID = next.ID
	}
	if out.Quality == "" {
		out.Quality = next.Quality
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = next.CreatedAt
	}
	if out.SourceRef == "" {
		out.SourceRef = next.SourceRef
	}

	out.Status = next.Status
	if next.VideoPath != "" {
		out.VideoPath = next.VideoPath
	}

	out.Error = ""
	out.CompletedAt = nil
	if out.Status == models.JobStatusFailed {
		out.Error = next.Error
		if out.Error == "" {
			out.Error = "render failed"
		}
	}
	if out.Status.Terminal() {
		done := now.UTC()
		if next.CompletedAt != nil {
			done = *next.CompletedAt
		}
		out.CompletedAt = &done
	}

	return out, !sameJob(cur, out)
}

func sameJob(a, b models.Job) bool {
	if a.ID != b.ID || a.Status != b.Status || a.Quality != b.Quality ||
		a.SourceRef != b.SourceRef || a.Error != b.Error || a.VideoPath != b.VideoPath ||
		!a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	switch {
	case a.CompletedAt == nil && b.CompletedAt == nil:
		return true
	case a.CompletedAt == nil || b.CompletedAt == nil:
		return false
	default:
		return a.CompletedAt.Equal(*b.CompletedAt)
	}
}
