package models

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a remote render job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Rank orders statuses along pending < processing < {completed, failed}.
// Unknown statuses rank below pending.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether no further transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the four known statuses.
func (s JobStatus) Valid() bool {
	return s.Rank() >= 0
}

// Quality is the render tier requested at submission.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

const wireQualitySuffix = "_quality"

// ParseQuality accepts "low", "medium", "high" and the render service
// spellings "low_quality", "medium_quality", "high_quality".
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), wireQualitySuffix))
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return q, nil
	}
	return "", fmt.Errorf("unrecognized quality %q: must be one of low, medium, high", s)
}

// Wire returns the value the render service expects.
func (q Quality) Wire() string {
	return string(q) + wireQualitySuffix
}

// Job is the local snapshot of a render job owned by the render service.
// Quality, CreatedAt and SourceRef are fixed at submission.
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Quality     Quality    `json:"quality"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SourceRef   string     `json:"source_ref"`
	Error       string     `json:"error,omitempty"`
	VideoPath   string     `json:"video_path,omitempty"`
}

// Terminal reports whether the job has completed or failed.
func (j Job) Terminal() bool {
	return j.Status.Terminal()
}
